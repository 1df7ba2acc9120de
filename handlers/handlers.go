// Package handlers exposes the ticketing service over fiber.
package handlers

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"concert-tickets/config"
	"concert-tickets/errors"
	"concert-tickets/middleware"
	"concert-tickets/model"
	"concert-tickets/ticketing"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service       *ticketing.Service
	nonces        *NonceStore
	mintAuthority model.Identity
	jwtSecret     []byte
	tokenTTL      time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func New(service *ticketing.Service, cfg config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:       service,
		nonces:        NewNonceStore(cfg.NonceTTL),
		mintAuthority: cfg.MintAuthority,
		jwtSecret:     []byte(cfg.JWTSecret),
		tokenTTL:      cfg.TokenTTL,
		logger:        logger.With("module", "handlers"),
		now:           time.Now,
	}
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "success",
		"message": message,
		"data":    data})
}

// requester resolves the caller's identity from the token placed by
// middleware.Authorize. It writes the error response itself.
func requester(c *fiber.Ctx) (model.Identity, bool, error) {
	id, err := middleware.Requester(c)
	if err != nil {
		return "", false, errors.RaisePermissionsError(c, fmt.Sprintf("cannot resolve requester: %v", err))
	}
	return id, true, nil
}

// totalTickets narrows a JSON number to the 16-bit capacity field.
func totalTickets(v *int64) (uint16, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: total_tickets is required", errors.ErrInvalidInput)
	}
	if *v < 0 || *v > math.MaxUint16 {
		return 0, fmt.Errorf("%w: total_tickets must be between 0 and %d, got %d",
			errors.ErrInvalidInput, math.MaxUint16, *v)
	}
	return uint16(*v), nil
}
