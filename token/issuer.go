// Package token mints the one-of-one token that backs each ticket.
package token

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"concert-tickets/database"
	apperrors "concert-tickets/errors"
	"concert-tickets/model"
)

var (
	ErrMintAuthority = errors.New("mint authority mismatch")
	ErrAlreadyMinted = errors.New("token already minted")
)

type MintRequest struct {
	Token     model.Identity
	Holder    model.Identity
	Authority model.Identity
}

// Ledger keeps token holdings in the Record Store itself, so a mint
// commits or rolls back together with the unit of work it runs in.
type Ledger struct {
	authority model.Identity
	now       func() time.Time
}

func NewLedger(authority model.Identity) *Ledger {
	return &Ledger{authority: authority, now: time.Now}
}

// MintOne mints exactly one indivisible unit of req.Token into
// req.Holder's holding. Supply is capped at one: a token that already
// has a holding cannot be minted again.
func (l *Ledger) MintOne(ctx context.Context, tx database.Tx, req MintRequest) error {
	if l.authority == "" || req.Authority != l.authority {
		return fmt.Errorf("%w: %q may not mint", ErrMintAuthority, req.Authority)
	}

	_, err := tx.GetHolding(ctx, req.Token)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrAlreadyMinted, req.Token)
	case !errors.Is(err, apperrors.ErrNotFound):
		return err
	}

	err = tx.CreateHolding(ctx, model.Holding{
		Token:     req.Token,
		Holder:    req.Holder,
		Authority: req.Authority,
		Amount:    1,
		Decimals:  0,
		MintedAt:  l.now().UTC().Truncate(time.Millisecond),
	})
	if errors.Is(err, apperrors.ErrConflict) {
		return fmt.Errorf("%w: %s", ErrAlreadyMinted, req.Token)
	}
	return err
}

// NewIdentity returns a fresh token identity: the public half of a
// newly generated ed25519 key pair.
func NewIdentity() (model.Identity, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate token identity: %w", err)
	}
	return model.IdentityFromPublicKey(pub), nil
}
