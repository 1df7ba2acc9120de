package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "concert-tickets/errors"
	"concert-tickets/model"
)

type memoryState struct {
	concerts map[string]model.Concert
	tickets  map[string]model.Ticket
	holdings map[model.Identity]model.Holding
}

func newMemoryState() memoryState {
	return memoryState{
		concerts: make(map[string]model.Concert),
		tickets:  make(map[string]model.Ticket),
		holdings: make(map[model.Identity]model.Holding),
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		concerts: make(map[string]model.Concert, len(s.concerts)),
		tickets:  make(map[string]model.Ticket, len(s.tickets)),
		holdings: make(map[model.Identity]model.Holding, len(s.holdings)),
	}
	for k, v := range s.concerts {
		out.concerts[k] = v
	}
	for k, v := range s.tickets {
		out.tickets[k] = cloneTicket(v)
	}
	for k, v := range s.holdings {
		out.holdings[k] = v
	}
	return out
}

func cloneTicket(t model.Ticket) model.Ticket {
	if t.SeatNumber != nil {
		seat := *t.SeatNumber
		t.SeatNumber = &seat
	}
	if t.RedeemedAt != nil {
		at := *t.RedeemedAt
		t.RedeemedAt = &at
	}
	return t
}

// Memory is a process-local Store. Units of work are serialized by a
// single mutex and run against a private copy of the state that replaces
// the shared state only when the unit succeeds.
type Memory struct {
	mu    sync.Mutex
	state memoryState
}

func NewMemory() *Memory {
	return &Memory{state: newMemoryState()}
}

func (m *Memory) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	working := m.state.clone()
	if err := fn(ctx, &memoryTx{state: working}); err != nil {
		return err
	}
	m.state = working
	return nil
}

func (m *Memory) ListConcerts(_ context.Context) ([]model.Concert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Concert, 0, len(m.state.concerts))
	for _, c := range m.state.concerts {
		out = append(out, c)
	}
	sortConcerts(out)
	return out, nil
}

func (m *Memory) ListTicketsByOwner(_ context.Context, owner model.Identity) ([]model.Ticket, error) {
	return m.filterTickets(func(t model.Ticket) bool { return t.Owner == owner }), nil
}

func (m *Memory) ListTicketsByConcert(_ context.Context, concertID string) ([]model.Ticket, error) {
	return m.filterTickets(func(t model.Ticket) bool { return t.ConcertID == concertID }), nil
}

func (m *Memory) filterTickets(keep func(model.Ticket) bool) []model.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Ticket, 0)
	for _, t := range m.state.tickets {
		if keep(t) {
			out = append(out, cloneTicket(t))
		}
	}
	sortTickets(out)
	return out
}

func (m *Memory) Close() error {
	return nil
}

type memoryTx struct {
	state memoryState
}

func (tx *memoryTx) CreateConcert(_ context.Context, concert model.Concert) error {
	if _, exists := tx.state.concerts[concert.ID]; exists {
		return fmt.Errorf("%w: concert %s already exists", apperrors.ErrConflict, concert.ID)
	}
	tx.state.concerts[concert.ID] = concert
	return nil
}

func (tx *memoryTx) GetConcert(_ context.Context, id string) (model.Concert, error) {
	concert, ok := tx.state.concerts[id]
	if !ok {
		return model.Concert{}, concertNotFound(id)
	}
	return concert, nil
}

func (tx *memoryTx) SaveConcert(_ context.Context, concert model.Concert) error {
	if _, ok := tx.state.concerts[concert.ID]; !ok {
		return concertNotFound(concert.ID)
	}
	tx.state.concerts[concert.ID] = concert
	return nil
}

func (tx *memoryTx) CloseConcert(_ context.Context, id string) error {
	if _, ok := tx.state.concerts[id]; !ok {
		return concertNotFound(id)
	}
	delete(tx.state.concerts, id)
	return nil
}

func (tx *memoryTx) CreateTicket(_ context.Context, ticket model.Ticket) error {
	if _, exists := tx.state.tickets[ticket.ID]; exists {
		return fmt.Errorf("%w: ticket %s already exists", apperrors.ErrConflict, ticket.ID)
	}
	tx.state.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (tx *memoryTx) GetTicket(_ context.Context, id string) (model.Ticket, error) {
	ticket, ok := tx.state.tickets[id]
	if !ok {
		return model.Ticket{}, ticketNotFound(id)
	}
	return cloneTicket(ticket), nil
}

func (tx *memoryTx) SaveTicket(_ context.Context, ticket model.Ticket) error {
	if _, ok := tx.state.tickets[ticket.ID]; !ok {
		return ticketNotFound(ticket.ID)
	}
	tx.state.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (tx *memoryTx) GetHolding(_ context.Context, token model.Identity) (model.Holding, error) {
	holding, ok := tx.state.holdings[token]
	if !ok {
		return model.Holding{}, holdingNotFound(token)
	}
	return holding, nil
}

func (tx *memoryTx) CreateHolding(_ context.Context, holding model.Holding) error {
	if _, exists := tx.state.holdings[holding.Token]; exists {
		return fmt.Errorf("%w: token %s already has a holding", apperrors.ErrConflict, holding.Token)
	}
	tx.state.holdings[holding.Token] = holding
	return nil
}

func concertNotFound(id string) error {
	return fmt.Errorf("%w: no concert with id %v", apperrors.ErrNotFound, id)
}

func ticketNotFound(id string) error {
	return fmt.Errorf("%w: no ticket with id %v", apperrors.ErrNotFound, id)
}

func holdingNotFound(token model.Identity) error {
	return fmt.Errorf("%w: no holding for token %v", apperrors.ErrNotFound, token)
}

func sortConcerts(concerts []model.Concert) {
	sort.Slice(concerts, func(i, j int) bool {
		if !concerts[i].CreatedAt.Equal(concerts[j].CreatedAt) {
			return concerts[i].CreatedAt.Before(concerts[j].CreatedAt)
		}
		return concerts[i].ID < concerts[j].ID
	})
}

func sortTickets(tickets []model.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		if !tickets[i].IssuedAt.Equal(tickets[j].IssuedAt) {
			return tickets[i].IssuedAt.Before(tickets[j].IssuedAt)
		}
		return tickets[i].ID < tickets[j].ID
	})
}

var _ Store = (*Memory)(nil)
