package handlers

import (
	"fmt"

	"concert-tickets/errors"
	"concert-tickets/ticketing"

	"github.com/gofiber/fiber/v2"
)

// IssueTicket sells a ticket to the caller. Tokens are always minted by
// the configured mint authority.
func (h *Handler) IssueTicket(c *fiber.Ctx) error {
	type TicketInput struct {
		TicketType string  `json:"ticket_type"`
		SeatNumber *string `json:"seat_number"`
	}

	id, ok, err := requester(c)
	if !ok {
		return err
	}

	in := new(TicketInput)
	if jsonErr := c.BodyParser(in); jsonErr != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable ticket parameters: %v", jsonErr))
	}

	ticket, err := h.service.IssueTicket(c.UserContext(), ticketing.IssueTicketRequest{
		ConcertID:     c.Params("id"),
		TicketType:    in.TicketType,
		SeatNumber:    in.SeatNumber,
		Buyer:         id,
		MintAuthority: h.mintAuthority,
	})
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	return respond(c, fiber.StatusCreated, "ticket issued", ticket)
}

func (h *Handler) RedeemTicket(c *fiber.Ctx) error {
	id, ok, err := requester(c)
	if !ok {
		return err
	}

	ticket, err := h.service.RedeemTicket(c.UserContext(), ticketing.RedeemTicketRequest{
		TicketID:  c.Params("id"),
		Requester: id,
	})
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	return respond(c, fiber.StatusOK, "ticket redeemed", ticket)
}

func (h *Handler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	return respond(c, fiber.StatusOK, "ticket", ticket)
}

func (h *Handler) VerifyTicket(c *fiber.Ctx) error {
	status, err := h.service.VerifyTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	return respond(c, fiber.StatusOK, "ticket status", status)
}

func (h *Handler) GetMyTickets(c *fiber.Ctx) error {
	id, ok, err := requester(c)
	if !ok {
		return err
	}

	tickets, err := h.service.ListTicketsByOwner(c.UserContext(), id)
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	return respond(c, fiber.StatusOK, "tickets", tickets)
}
