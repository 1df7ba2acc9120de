package ticketing

import (
	"fmt"
	"math"

	apperrors "concert-tickets/errors"
	"concert-tickets/model"

	"github.com/google/uuid"
)

type RegisterConcertRequest struct {
	Requester    model.Identity
	Name         string
	Venue        string
	Date         string
	TotalTickets uint16
}

func (r RegisterConcertRequest) Validate() error {
	if err := validateIdentity("requester", r.Requester); err != nil {
		return err
	}
	return validateConcertText(r.Name, r.Venue, r.Date)
}

type UpdateConcertRequest struct {
	ConcertID    string
	Requester    model.Identity
	Name         string
	Venue        string
	Date         string
	TotalTickets uint16
}

func (r UpdateConcertRequest) Validate() error {
	if err := validateRecordID("concert", r.ConcertID); err != nil {
		return err
	}
	if err := validateIdentity("requester", r.Requester); err != nil {
		return err
	}
	return validateConcertText(r.Name, r.Venue, r.Date)
}

type DeleteConcertRequest struct {
	ConcertID string
	Requester model.Identity
}

func (r DeleteConcertRequest) Validate() error {
	if err := validateRecordID("concert", r.ConcertID); err != nil {
		return err
	}
	return validateIdentity("requester", r.Requester)
}

// DeleteConcertResult names the identity any residual stake of the
// closed record was released to.
type DeleteConcertResult struct {
	ConcertID string         `json:"concert_id"`
	RefundTo  model.Identity `json:"refund_to"`
	Role      Role           `json:"role"`
}

type IssueTicketRequest struct {
	ConcertID     string
	TicketType    string
	SeatNumber    *string
	Buyer         model.Identity
	MintAuthority model.Identity
}

func (r IssueTicketRequest) Validate() error {
	if err := validateLength("ticket type", r.TicketType, model.MaxTicketTypeLen); err != nil {
		return err
	}
	if r.SeatNumber != nil {
		if err := validateLength("seat number", *r.SeatNumber, model.MaxSeatLen); err != nil {
			return err
		}
	}
	if err := validateRecordID("concert", r.ConcertID); err != nil {
		return err
	}
	if err := validateIdentity("buyer", r.Buyer); err != nil {
		return err
	}
	return validateIdentity("mint authority", r.MintAuthority)
}

type RedeemTicketRequest struct {
	TicketID  string
	Requester model.Identity
}

func (r RedeemTicketRequest) Validate() error {
	if err := validateRecordID("ticket", r.TicketID); err != nil {
		return err
	}
	return validateIdentity("requester", r.Requester)
}

// TicketStatus is what a gate check needs to know about a ticket.
type TicketStatus struct {
	Ticket        model.Ticket `json:"ticket"`
	ConcertExists bool         `json:"concert_exists"`
	Used          bool         `json:"used"`
	TokenHeld     bool         `json:"token_held"`
}

// Lengths are byte lengths, which is what bounds the stored record size.
func validateLength(field string, value string, limit int) error {
	if len(value) > limit {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", apperrors.ErrInvalidInput, field, len(value), limit)
	}
	return nil
}

func validateConcertText(name, venue, date string) error {
	if err := validateLength("name", name, model.MaxNameLen); err != nil {
		return err
	}
	if err := validateLength("venue", venue, model.MaxVenueLen); err != nil {
		return err
	}
	return validateLength("date", date, model.MaxDateLen)
}

func validateIdentity(field string, id model.Identity) error {
	if _, err := id.PublicKey(); err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrInvalidInput, field, err)
	}
	return nil
}

func validateRecordID(kind string, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid %s ID format: %v", apperrors.ErrInvalidInput, kind, err)
	}
	return nil
}

func checkedIncrement(v uint16) (uint16, error) {
	if v == math.MaxUint16 {
		return 0, fmt.Errorf("%w: tickets sold counter is at %d", apperrors.ErrArithmeticOverflow, v)
	}
	return v + 1, nil
}
