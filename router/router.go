package router

import (
	"concert-tickets/handlers"
	"concert-tickets/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func SetupRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	api := app.Group("/", logger.New())
	auth := middleware.Authorize(secret)

	//Login
	login := api.Group("/auth")
	login.Post("/nonce", h.Nonce)
	login.Post("/login", h.Login)

	//Concert
	concert := api.Group("/concerts")
	concert.Get("/", h.GetConcerts)
	concert.Get("/:id", h.GetConcert)
	concert.Post("/", auth, h.CreateConcert)
	concert.Put("/:id", auth, h.UpdateConcert)
	concert.Delete("/:id", auth, h.DeleteConcert)
	concert.Get("/:id/tickets", h.GetConcertTickets)
	concert.Post("/:id/tickets", auth, h.IssueTicket)

	//Ticket
	ticket := api.Group("/tickets")
	ticket.Get("/mine", auth, h.GetMyTickets)
	ticket.Get("/:id", h.GetTicket)
	ticket.Get("/:id/verify", h.VerifyTicket)
	ticket.Post("/:id/redeem", auth, h.RedeemTicket)
}
