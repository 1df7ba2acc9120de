package handlers

import (
	"fmt"

	"concert-tickets/errors"
	"concert-tickets/model"
	"concert-tickets/ticketing"

	"github.com/gofiber/fiber/v2"
)

type concertInput struct {
	Name         string `json:"name"`
	Venue        string `json:"venue"`
	Date         string `json:"date"`
	TotalTickets *int64 `json:"total_tickets"`
}

// concertView is the response shape of a concert.
type concertView struct {
	model.Concert
	RemainingTickets uint16 `json:"remaining_tickets"`
}

func viewConcert(concert model.Concert) concertView {
	return concertView{Concert: concert, RemainingTickets: concert.RemainingTickets()}
}

func (h *Handler) GetConcerts(c *fiber.Ctx) error {
	concerts, err := h.service.ListConcerts(c.UserContext())
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	views := make([]concertView, 0, len(concerts))
	for _, concert := range concerts {
		views = append(views, viewConcert(concert))
	}
	return respond(c, fiber.StatusOK, "concerts", views)
}

func (h *Handler) GetConcert(c *fiber.Ctx) error {
	concert, err := h.service.GetConcert(c.UserContext(), c.Params("id"))
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	return respond(c, fiber.StatusOK, "concert", viewConcert(concert))
}

func (h *Handler) CreateConcert(c *fiber.Ctx) error {
	id, ok, err := requester(c)
	if !ok {
		return err
	}

	in := new(concertInput)
	if jsonErr := c.BodyParser(in); jsonErr != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable concert parameters: %v", jsonErr))
	}
	total, err := totalTickets(in.TotalTickets)
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}

	concert, err := h.service.RegisterConcert(c.UserContext(), ticketing.RegisterConcertRequest{
		Requester:    id,
		Name:         in.Name,
		Venue:        in.Venue,
		Date:         in.Date,
		TotalTickets: total,
	})
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	return respond(c, fiber.StatusCreated, "concert registered", viewConcert(concert))
}

func (h *Handler) UpdateConcert(c *fiber.Ctx) error {
	id, ok, err := requester(c)
	if !ok {
		return err
	}

	in := new(concertInput)
	if jsonErr := c.BodyParser(in); jsonErr != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable concert parameters: %v", jsonErr))
	}
	total, err := totalTickets(in.TotalTickets)
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}

	concert, err := h.service.UpdateConcert(c.UserContext(), ticketing.UpdateConcertRequest{
		ConcertID:    c.Params("id"),
		Requester:    id,
		Name:         in.Name,
		Venue:        in.Venue,
		Date:         in.Date,
		TotalTickets: total,
	})
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	return respond(c, fiber.StatusOK, "concert updated", viewConcert(concert))
}

func (h *Handler) DeleteConcert(c *fiber.Ctx) error {
	id, ok, err := requester(c)
	if !ok {
		return err
	}

	result, err := h.service.DeleteConcert(c.UserContext(), ticketing.DeleteConcertRequest{
		ConcertID: c.Params("id"),
		Requester: id,
	})
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	return respond(c, fiber.StatusOK, "entity deleted", result)
}

func (h *Handler) GetConcertTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListTicketsByConcert(c.UserContext(), c.Params("id"))
	if err != nil {
		return errors.RaiseDomainError(c, err)
	}
	return respond(c, fiber.StatusOK, "tickets", tickets)
}
