// Package database holds the Record Store: durable keyed storage for
// concerts, tickets and token holdings, with every mutation scoped to a
// single all-or-nothing unit of work.
package database

import (
	"context"

	"concert-tickets/model"
)

// Tx is the view of the store inside one unit of work. Lookups of a
// missing record fail with errors.ErrNotFound.
type Tx interface {
	CreateConcert(ctx context.Context, concert model.Concert) error
	GetConcert(ctx context.Context, id string) (model.Concert, error)
	SaveConcert(ctx context.Context, concert model.Concert) error
	// CloseConcert removes the concert record. Tickets referencing it
	// are left in place.
	CloseConcert(ctx context.Context, id string) error

	CreateTicket(ctx context.Context, ticket model.Ticket) error
	GetTicket(ctx context.Context, id string) (model.Ticket, error)
	SaveTicket(ctx context.Context, ticket model.Ticket) error

	GetHolding(ctx context.Context, token model.Identity) (model.Holding, error)
	// CreateHolding fails with errors.ErrConflict if the token already
	// has a holding.
	CreateHolding(ctx context.Context, holding model.Holding) error
}

type Store interface {
	// RunInTransaction runs fn as one unit of work. If fn returns an
	// error none of its writes become visible. A unit of work rejected
	// because of a concurrent conflicting write fails with
	// errors.ErrConflict.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListConcerts(ctx context.Context) ([]model.Concert, error)
	ListTicketsByOwner(ctx context.Context, owner model.Identity) ([]model.Ticket, error)
	ListTicketsByConcert(ctx context.Context, concertID string) ([]model.Ticket, error)

	Close() error
}
