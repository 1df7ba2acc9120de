package handlers

import (
	"crypto/ed25519"
	"fmt"

	"concert-tickets/errors"
	"concert-tickets/model"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/sign"
)

func verifySignature(id model.Identity, message string, signature string) error {
	pub, err := id.PublicKey()
	if err != nil {
		return err
	}
	sig, err := base58.Decode(signature)
	if err != nil {
		return fmt.Errorf("signature is not base58: %v", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("signature is %d bytes, want %d", len(sig), ed25519.SignatureSize)
	}

	var key [32]byte
	copy(key[:], pub)
	signed := append(sig, []byte(message)...)
	if _, ok := sign.Open(nil, signed, &key); !ok {
		return fmt.Errorf("signature does not match identity %s", id)
	}
	return nil
}

func (h *Handler) Nonce(c *fiber.Ctx) error {
	type NonceRequest struct {
		Identity string `json:"identity"`
	}

	var req = new(NonceRequest)
	if err := c.BodyParser(req); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable nonce request: %v", err))
	}
	id, err := model.ParseIdentity(req.Identity)
	if err != nil {
		return errors.RaiseBadRequestError(c, err.Error())
	}

	nonce, expires := h.nonces.Issue(id)
	return respond(c, fiber.StatusOK, "Sign the nonce to log in", fiber.Map{
		"nonce":      nonce,
		"expires_at": expires.UTC(),
	})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	type Credentials struct {
		Identity  string `json:"identity"`
		Message   string `json:"message"`
		Signature string `json:"signature"`
	}

	var creds = new(Credentials)
	if err := c.BodyParser(creds); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("Error on login request when parse credentials: %v", err))
	}
	if creds.Identity == "" || creds.Message == "" || creds.Signature == "" {
		return errors.RaiseBadRequestError(c, "identity, message and signature are required")
	}

	id, err := model.ParseIdentity(creds.Identity)
	if err != nil {
		return errors.RaiseBadRequestError(c, err.Error())
	}

	if err := verifySignature(id, creds.Message, creds.Signature); err != nil {
		h.logger.Warn("login rejected", "event", "login_rejected", "identity", id, "error", err.Error())
		return errors.RaiseError(c, fiber.StatusUnauthorized, "Invalid signature", err.Error())
	}
	if err := h.nonces.Consume(id, creds.Message); err != nil {
		h.logger.Warn("login rejected", "event", "login_rejected", "identity", id, "error", err.Error())
		return errors.RaiseError(c, fiber.StatusUnauthorized, "Invalid nonce", err.Error())
	}

	isAdmin := h.service.Policy().IsAdmin(id)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   id.String(),
		"admin": isAdmin,
		"exp":   h.now().Add(h.tokenTTL).Unix(),
	})
	t, err := token.SignedString(h.jwtSecret)
	if err != nil {
		return errors.RaiseInternalServerError(c, fmt.Sprintf("sign token: %v", err))
	}

	h.logger.Info("login", "event", "login", "identity", id, "admin", isAdmin)
	return respond(c, fiber.StatusOK, "Success login", t)
}
