package errors

import (
	stderrors "errors"

	"github.com/gofiber/fiber/v2"
)

// Every failed operation returns one of these, possibly wrapped with
// detail. Nothing is committed when any of them is returned.
var (
	ErrInvalidInput       = stderrors.New("invalid input")
	ErrSoldOut            = stderrors.New("concert is sold out")
	ErrArithmeticOverflow = stderrors.New("arithmetic overflow")
	ErrCapacityBelowSold  = stderrors.New("total tickets below tickets sold")
	ErrUnauthorized       = stderrors.New("not authorized for this operation")
	ErrAlreadyUsed        = stderrors.New("ticket already used")
	ErrMintFailed         = stderrors.New("token mint failed")
	ErrNotFound           = stderrors.New("record not found")
	ErrConflict           = stderrors.New("conflicting concurrent update")
)

var kinds = []struct {
	err    error
	name   string
	status int
}{
	{ErrInvalidInput, "InvalidInput", fiber.StatusBadRequest},
	{ErrSoldOut, "SoldOut", fiber.StatusConflict},
	{ErrArithmeticOverflow, "ArithmeticOverflow", fiber.StatusUnprocessableEntity},
	{ErrCapacityBelowSold, "CapacityBelowSold", fiber.StatusConflict},
	{ErrUnauthorized, "Unauthorized", fiber.StatusForbidden},
	{ErrAlreadyUsed, "AlreadyUsed", fiber.StatusConflict},
	{ErrMintFailed, "MintFailed", fiber.StatusBadGateway},
	{ErrNotFound, "NotFound", fiber.StatusNotFound},
	{ErrConflict, "Conflict", fiber.StatusConflict},
}

// Kind names the taxonomy entry err belongs to, or "Internal".
func Kind(err error) string {
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

func StatusCode(err error) int {
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.status
		}
	}
	return fiber.StatusInternalServerError
}

func RaiseError(context *fiber.Ctx, status int, message string, data string) error {
	return context.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    data})
}

// RaiseDomainError reports err with the status and kind of its taxonomy entry.
func RaiseDomainError(context *fiber.Ctx, err error) error {
	status := StatusCode(err)
	switch status {
	case fiber.StatusInternalServerError:
		return RaiseInternalServerError(context, err.Error())
	case fiber.StatusNotFound:
		return RaiseNotFoundError(context, err.Error())
	}
	return RaiseError(context, status, Kind(err), err.Error())
}

func RaisePermissionsError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusUnauthorized, "lack of permissions", data)
}

func RaiseInternalServerError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusInternalServerError, "internal error", data)
}

func RaiseBadRequestError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusBadRequest, "bad request", data)
}

func RaiseNotFoundError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusNotFound, "resource not found", data)
}
