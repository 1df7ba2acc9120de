package ticketing

import (
	"fmt"

	apperrors "concert-tickets/errors"
	"concert-tickets/model"
)

type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

// Policy decides who may mutate a concert: its authority, or the single
// global admin identity it was constructed with.
type Policy struct {
	admin model.Identity
}

// NewPolicy builds a Policy. An empty admin leaves owners as the only
// identities with access.
func NewPolicy(admin model.Identity) Policy {
	return Policy{admin: admin}
}

func (p Policy) IsAdmin(requester model.Identity) bool {
	return p.admin != "" && requester == p.admin
}

// AuthorizeConcert reports the role under which requester may mutate
// concert. Admin wins when the requester is both.
func (p Policy) AuthorizeConcert(requester model.Identity, concert model.Concert) (Role, error) {
	isOwner := requester != "" && requester == concert.Authority
	isAdmin := p.IsAdmin(requester)

	switch {
	case isAdmin:
		return RoleAdmin, nil
	case isOwner:
		return RoleOwner, nil
	default:
		return "", fmt.Errorf("%w: %s is neither the authority of concert %s nor the global admin",
			apperrors.ErrUnauthorized, requester, concert.ID)
	}
}
