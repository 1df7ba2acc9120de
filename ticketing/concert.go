package ticketing

import (
	"context"
	"fmt"

	"concert-tickets/database"
	apperrors "concert-tickets/errors"
	"concert-tickets/model"

	"github.com/google/uuid"
)

// RegisterConcert creates a concert owned by the requester with no
// tickets sold.
func (s *Service) RegisterConcert(ctx context.Context, req RegisterConcertRequest) (model.Concert, error) {
	if err := req.Validate(); err != nil {
		return model.Concert{}, s.reject(ctx, "concert_register_rejected", err, "requester", req.Requester)
	}

	now := s.timestamp()
	concert := model.Concert{
		ID:           uuid.NewString(),
		Authority:    req.Requester,
		Name:         req.Name,
		Venue:        req.Venue,
		Date:         req.Date,
		TotalTickets: req.TotalTickets,
		TicketsSold:  0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		return tx.CreateConcert(ctx, concert)
	})
	if err != nil {
		return model.Concert{}, s.reject(ctx, "concert_register_rejected", err, "requester", req.Requester)
	}

	s.logger.Info("concert registered",
		"event", "concert_registered",
		"concert_id", concert.ID,
		"authority", concert.Authority,
		"name", concert.Name,
		"total_tickets", concert.TotalTickets,
	)
	return concert, nil
}

// UpdateConcert replaces the name, venue, date and capacity of a concert.
// Capacity may not drop below the tickets already sold.
func (s *Service) UpdateConcert(ctx context.Context, req UpdateConcertRequest) (model.Concert, error) {
	if err := req.Validate(); err != nil {
		return model.Concert{}, s.reject(ctx, "concert_update_rejected", err,
			"concert_id", req.ConcertID, "requester", req.Requester)
	}

	var updated model.Concert
	var role Role
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		concert, err := tx.GetConcert(ctx, req.ConcertID)
		if err != nil {
			return err
		}

		role, err = s.policy.AuthorizeConcert(req.Requester, concert)
		if err != nil {
			return err
		}

		if req.TotalTickets < concert.TicketsSold {
			return fmt.Errorf("%w: cannot assign %v as total tickets, %v tickets already sold",
				apperrors.ErrCapacityBelowSold, req.TotalTickets, concert.TicketsSold)
		}

		concert.Name = req.Name
		concert.Venue = req.Venue
		concert.Date = req.Date
		concert.TotalTickets = req.TotalTickets
		concert.UpdatedAt = s.timestamp()
		if err := tx.SaveConcert(ctx, concert); err != nil {
			return err
		}
		updated = concert
		return nil
	})
	if err != nil {
		return model.Concert{}, s.reject(ctx, "concert_update_rejected", err,
			"concert_id", req.ConcertID, "requester", req.Requester)
	}

	s.logger.Info("concert updated",
		"event", "concert_updated",
		"concert_id", updated.ID,
		"requester", req.Requester,
		"role", role,
		"total_tickets", updated.TotalTickets,
		"tickets_sold", updated.TicketsSold,
	)
	return updated, nil
}

// DeleteConcert closes the concert record. Tickets issued for it are
// kept and keep referencing the now absent concert.
func (s *Service) DeleteConcert(ctx context.Context, req DeleteConcertRequest) (DeleteConcertResult, error) {
	if err := req.Validate(); err != nil {
		return DeleteConcertResult{}, s.reject(ctx, "concert_delete_rejected", err,
			"concert_id", req.ConcertID, "requester", req.Requester)
	}

	var role Role
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		concert, err := tx.GetConcert(ctx, req.ConcertID)
		if err != nil {
			return err
		}

		role, err = s.policy.AuthorizeConcert(req.Requester, concert)
		if err != nil {
			return err
		}
		return tx.CloseConcert(ctx, concert.ID)
	})
	if err != nil {
		return DeleteConcertResult{}, s.reject(ctx, "concert_delete_rejected", err,
			"concert_id", req.ConcertID, "requester", req.Requester)
	}

	s.logger.Info("concert deleted, stake released",
		"event", "concert_deleted",
		"concert_id", req.ConcertID,
		"requester", req.Requester,
		"role", role,
		"refund_to", req.Requester,
	)
	return DeleteConcertResult{ConcertID: req.ConcertID, RefundTo: req.Requester, Role: role}, nil
}

func (s *Service) GetConcert(ctx context.Context, concertID string) (model.Concert, error) {
	if err := validateRecordID("concert", concertID); err != nil {
		return model.Concert{}, err
	}

	var concert model.Concert
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		var err error
		concert, err = tx.GetConcert(ctx, concertID)
		return err
	})
	if err != nil {
		return model.Concert{}, err
	}
	return concert, nil
}

func (s *Service) ListConcerts(ctx context.Context) ([]model.Concert, error) {
	return s.store.ListConcerts(ctx)
}
