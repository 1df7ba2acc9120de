package model

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// Identity is an account address: a base58-encoded ed25519 public key.
// Requesters, concert authorities, ticket owners and token identities
// all share this representation and are compared by value.
type Identity string

func (id Identity) String() string {
	return string(id)
}

// PublicKey decodes the identity into its raw key bytes.
func (id Identity) PublicKey() (ed25519.PublicKey, error) {
	raw, err := base58.Decode(string(id))
	if err != nil {
		return nil, fmt.Errorf("identity %q is not base58: %v", string(id), err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity %q decodes to %d bytes, want %d", string(id), len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

func (id Identity) Valid() bool {
	_, err := id.PublicKey()
	return err == nil
}

func ParseIdentity(s string) (Identity, error) {
	id := Identity(s)
	if _, err := id.PublicKey(); err != nil {
		return "", err
	}
	return id, nil
}

func IdentityFromPublicKey(pub ed25519.PublicKey) Identity {
	return Identity(base58.Encode(pub))
}
