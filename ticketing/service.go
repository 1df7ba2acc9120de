// Package ticketing enforces the concert and ticket lifecycle rules:
// capacity, owner-or-admin authorization, one-shot redemption and
// one token per ticket. Each operation runs as a single unit of work
// against the Record Store, so a failed operation changes nothing.
package ticketing

import (
	"context"
	"log/slog"
	"time"

	"concert-tickets/database"
	apperrors "concert-tickets/errors"
	"concert-tickets/model"
	"concert-tickets/token"
)

// TokenIssuer mints the token that backs a new ticket. It writes through
// tx so the mint is part of the same unit of work as the ticket.
type TokenIssuer interface {
	MintOne(ctx context.Context, tx database.Tx, req token.MintRequest) error
}

type Service struct {
	store    database.Store
	issuer   TokenIssuer
	policy   Policy
	logger   *slog.Logger
	now      func() time.Time
	newToken func() (model.Identity, error)
}

type Option func(*Service)

// WithClock replaces the wall clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store database.Store, issuer TokenIssuer, policy Policy, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		issuer:   issuer,
		policy:   policy,
		logger:   logger.With("module", "ticketing"),
		now:      time.Now,
		newToken: token.NewIdentity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() Policy {
	return s.policy
}

// timestamp truncates to milliseconds, the coarsest precision any store keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) reject(ctx context.Context, event string, err error, attrs ...any) error {
	attrs = append(attrs, "event", event, "error_kind", apperrors.Kind(err), "error", err.Error())
	level := slog.LevelWarn
	if apperrors.Kind(err) == "Internal" {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "operation rejected", attrs...)
	return err
}
