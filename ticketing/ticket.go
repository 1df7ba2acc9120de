package ticketing

import (
	"context"
	"errors"
	"fmt"

	"concert-tickets/database"
	apperrors "concert-tickets/errors"
	"concert-tickets/model"
	"concert-tickets/token"

	"github.com/google/uuid"
)

// IssueTicket sells one ticket for a concert to the buyer. The capacity
// check, the sold counter increment, the token mint and the ticket record
// all commit together or not at all.
func (s *Service) IssueTicket(ctx context.Context, req IssueTicketRequest) (model.Ticket, error) {
	if err := req.Validate(); err != nil {
		return model.Ticket{}, s.reject(ctx, "ticket_issue_rejected", err,
			"concert_id", req.ConcertID, "buyer", req.Buyer)
	}

	var issued model.Ticket
	var concertName string
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		concert, err := tx.GetConcert(ctx, req.ConcertID)
		if err != nil {
			return err
		}

		if concert.SoldOut() {
			return fmt.Errorf("%w: all %d tickets for concert %s are sold",
				apperrors.ErrSoldOut, concert.TotalTickets, concert.ID)
		}
		sold, err := checkedIncrement(concert.TicketsSold)
		if err != nil {
			return err
		}

		tokenID, err := s.newToken()
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrMintFailed, err)
		}
		err = s.issuer.MintOne(ctx, tx, token.MintRequest{
			Token:     tokenID,
			Holder:    req.Buyer,
			Authority: req.MintAuthority,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrMintFailed, err)
		}

		now := s.timestamp()
		concert.TicketsSold = sold
		concert.UpdatedAt = now
		if err := tx.SaveConcert(ctx, concert); err != nil {
			return err
		}

		ticket := model.Ticket{
			ID:         uuid.NewString(),
			Owner:      req.Buyer,
			Token:      tokenID,
			ConcertID:  concert.ID,
			TicketType: req.TicketType,
			SeatNumber: copySeat(req.SeatNumber),
			Used:       false,
			IssuedAt:   now,
		}
		if err := tx.CreateTicket(ctx, ticket); err != nil {
			return err
		}

		issued = ticket
		concertName = concert.Name
		return nil
	})
	if err != nil {
		return model.Ticket{}, s.reject(ctx, "ticket_issue_rejected", err,
			"concert_id", req.ConcertID, "buyer", req.Buyer)
	}

	s.logger.Info("ticket issued",
		"event", "ticket_issued",
		"ticket_id", issued.ID,
		"concert_id", issued.ConcertID,
		"concert_name", concertName,
		"owner", issued.Owner,
		"token", issued.Token,
	)
	return issued, nil
}

// RedeemTicket marks a ticket used. Only its owner may redeem it, and
// only once: redeeming a used ticket is an error, not a no-op.
func (s *Service) RedeemTicket(ctx context.Context, req RedeemTicketRequest) (model.Ticket, error) {
	if err := req.Validate(); err != nil {
		return model.Ticket{}, s.reject(ctx, "ticket_redeem_rejected", err,
			"ticket_id", req.TicketID, "requester", req.Requester)
	}

	var redeemed model.Ticket
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		ticket, err := tx.GetTicket(ctx, req.TicketID)
		if err != nil {
			return err
		}

		if ticket.Owner != req.Requester {
			return fmt.Errorf("%w: %s does not own ticket %s",
				apperrors.ErrUnauthorized, req.Requester, ticket.ID)
		}
		if ticket.Used {
			return fmt.Errorf("%w: ticket %s", apperrors.ErrAlreadyUsed, ticket.ID)
		}

		now := s.timestamp()
		ticket.Used = true
		ticket.RedeemedAt = &now
		if err := tx.SaveTicket(ctx, ticket); err != nil {
			return err
		}
		redeemed = ticket
		return nil
	})
	if err != nil {
		return model.Ticket{}, s.reject(ctx, "ticket_redeem_rejected", err,
			"ticket_id", req.TicketID, "requester", req.Requester)
	}

	s.logger.Info("ticket redeemed",
		"event", "ticket_redeemed",
		"ticket_id", redeemed.ID,
		"concert_id", redeemed.ConcertID,
		"owner", redeemed.Owner,
	)
	return redeemed, nil
}

func (s *Service) GetTicket(ctx context.Context, ticketID string) (model.Ticket, error) {
	if err := validateRecordID("ticket", ticketID); err != nil {
		return model.Ticket{}, err
	}

	var ticket model.Ticket
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		var err error
		ticket, err = tx.GetTicket(ctx, ticketID)
		return err
	})
	if err != nil {
		return model.Ticket{}, err
	}
	return ticket, nil
}

// VerifyTicket reports whether a ticket is still good for entry: its
// concert exists, it is unused, and its owner still holds its token.
func (s *Service) VerifyTicket(ctx context.Context, ticketID string) (TicketStatus, error) {
	if err := validateRecordID("ticket", ticketID); err != nil {
		return TicketStatus{}, err
	}

	var status TicketStatus
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		ticket, err := tx.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		status = TicketStatus{Ticket: ticket, Used: ticket.Used}

		_, err = tx.GetConcert(ctx, ticket.ConcertID)
		switch {
		case err == nil:
			status.ConcertExists = true
		case !errors.Is(err, apperrors.ErrNotFound):
			return err
		}

		holding, err := tx.GetHolding(ctx, ticket.Token)
		switch {
		case err == nil:
			status.TokenHeld = holding.Holder == ticket.Owner && holding.Amount == 1
		case !errors.Is(err, apperrors.ErrNotFound):
			return err
		}
		return nil
	})
	if err != nil {
		return TicketStatus{}, err
	}
	return status, nil
}

func (s *Service) ListTicketsByOwner(ctx context.Context, owner model.Identity) ([]model.Ticket, error) {
	if err := validateIdentity("owner", owner); err != nil {
		return nil, err
	}
	return s.store.ListTicketsByOwner(ctx, owner)
}

// ListTicketsByConcert lists tickets referencing concertID, including
// tickets whose concert has since been deleted.
func (s *Service) ListTicketsByConcert(ctx context.Context, concertID string) ([]model.Ticket, error) {
	if err := validateRecordID("concert", concertID); err != nil {
		return nil, err
	}
	return s.store.ListTicketsByConcert(ctx, concertID)
}

func copySeat(seat *string) *string {
	if seat == nil {
		return nil
	}
	v := *seat
	return &v
}
