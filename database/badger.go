package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "concert-tickets/errors"
	"concert-tickets/model"

	"github.com/dgraph-io/badger"
)

const (
	concertPrefix = "concert/"
	ticketPrefix  = "ticket/"
	holdingPrefix = "holding/"
)

// Badger is an embedded Store. Units of work are Badger read-write
// transactions; two units that touch the same key concurrently cannot
// both commit, the loser fails with errors.ErrConflict.
type Badger struct {
	db *badger.DB
}

func OpenBadger(path string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if logger != nil {
		opts.Logger = badgerLogger{logger: logger.With("module", "database/badger")}
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cannot open badger store at %s: %v", path, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return fn(ctx, &badgerTx{txn: txn})
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	}
	return err
}

func (b *Badger) ListConcerts(_ context.Context) ([]model.Concert, error) {
	out := make([]model.Concert, 0)
	err := b.scan(concertPrefix, func(val []byte) error {
		var concert model.Concert
		if err := decodeRecord(val, &concert); err != nil {
			return err
		}
		out = append(out, concert)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortConcerts(out)
	return out, nil
}

func (b *Badger) ListTicketsByOwner(_ context.Context, owner model.Identity) ([]model.Ticket, error) {
	return b.scanTickets(func(t model.Ticket) bool { return t.Owner == owner })
}

func (b *Badger) ListTicketsByConcert(_ context.Context, concertID string) ([]model.Ticket, error) {
	return b.scanTickets(func(t model.Ticket) bool { return t.ConcertID == concertID })
}

func (b *Badger) scanTickets(keep func(model.Ticket) bool) ([]model.Ticket, error) {
	out := make([]model.Ticket, 0)
	err := b.scan(ticketPrefix, func(val []byte) error {
		var ticket model.Ticket
		if err := decodeRecord(val, &ticket); err != nil {
			return err
		}
		if keep(ticket) {
			out = append(out, ticket)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTickets(out)
	return out, nil
}

func (b *Badger) scan(prefix string, visit func(val []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(visit); err != nil {
				return fmt.Errorf("decode %s: %v", it.Item().Key(), err)
			}
		}
		return nil
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}

type badgerTx struct {
	txn *badger.Txn
}

func (tx *badgerTx) get(key string, v any) (bool, error) {
	item, err := tx.txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return false, err
	}
	if err := decodeRecord(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %v", key, err)
	}
	return true, nil
}

func (tx *badgerTx) exists(key string) (bool, error) {
	_, err := tx.txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (tx *badgerTx) put(key string, v any) error {
	raw, err := encodeRecord(v)
	if err != nil {
		return fmt.Errorf("encode %s: %v", key, err)
	}
	return tx.txn.Set([]byte(key), raw)
}

func (tx *badgerTx) CreateConcert(_ context.Context, concert model.Concert) error {
	key := concertPrefix + concert.ID
	found, err := tx.exists(key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: concert %s already exists", apperrors.ErrConflict, concert.ID)
	}
	return tx.put(key, concert)
}

func (tx *badgerTx) GetConcert(_ context.Context, id string) (model.Concert, error) {
	var concert model.Concert
	found, err := tx.get(concertPrefix+id, &concert)
	if err != nil {
		return model.Concert{}, err
	}
	if !found {
		return model.Concert{}, concertNotFound(id)
	}
	return concert, nil
}

func (tx *badgerTx) SaveConcert(_ context.Context, concert model.Concert) error {
	key := concertPrefix + concert.ID
	found, err := tx.exists(key)
	if err != nil {
		return err
	}
	if !found {
		return concertNotFound(concert.ID)
	}
	return tx.put(key, concert)
}

func (tx *badgerTx) CloseConcert(_ context.Context, id string) error {
	key := concertPrefix + id
	found, err := tx.exists(key)
	if err != nil {
		return err
	}
	if !found {
		return concertNotFound(id)
	}
	return tx.txn.Delete([]byte(key))
}

func (tx *badgerTx) CreateTicket(_ context.Context, ticket model.Ticket) error {
	key := ticketPrefix + ticket.ID
	found, err := tx.exists(key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: ticket %s already exists", apperrors.ErrConflict, ticket.ID)
	}
	return tx.put(key, ticket)
}

func (tx *badgerTx) GetTicket(_ context.Context, id string) (model.Ticket, error) {
	var ticket model.Ticket
	found, err := tx.get(ticketPrefix+id, &ticket)
	if err != nil {
		return model.Ticket{}, err
	}
	if !found {
		return model.Ticket{}, ticketNotFound(id)
	}
	return ticket, nil
}

func (tx *badgerTx) SaveTicket(_ context.Context, ticket model.Ticket) error {
	key := ticketPrefix + ticket.ID
	found, err := tx.exists(key)
	if err != nil {
		return err
	}
	if !found {
		return ticketNotFound(ticket.ID)
	}
	return tx.put(key, ticket)
}

func (tx *badgerTx) GetHolding(_ context.Context, token model.Identity) (model.Holding, error) {
	var holding model.Holding
	found, err := tx.get(holdingPrefix+token.String(), &holding)
	if err != nil {
		return model.Holding{}, err
	}
	if !found {
		return model.Holding{}, holdingNotFound(token)
	}
	return holding, nil
}

func (tx *badgerTx) CreateHolding(_ context.Context, holding model.Holding) error {
	key := holdingPrefix + holding.Token.String()
	found, err := tx.exists(key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: token %s already has a holding", apperrors.ErrConflict, holding.Token)
	}
	return tx.put(key, holding)
}

// badgerLogger routes Badger's internal logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

var _ Store = (*Badger)(nil)
