package handlers_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"concert-tickets/config"
	"concert-tickets/database"
	"concert-tickets/handlers"
	"concert-tickets/model"
	"concert-tickets/router"
	"concert-tickets/ticketing"
	"concert-tickets/token"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

type Test struct {
	description  string
	method       string
	route        string
	bodyinput    interface{}
	token        string
	expectedCode int
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type wallet struct {
	id   model.Identity
	priv ed25519.PrivateKey
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return wallet{id: model.IdentityFromPublicKey(pub), priv: priv}
}

func (w wallet) sign(message string) string {
	return base58.Encode(ed25519.Sign(w.priv, []byte(message)))
}

type env struct {
	app    *fiber.App
	admin  wallet
	minter wallet
}

func newEnv(t *testing.T) env {
	t.Helper()
	e := env{admin: newWallet(t), minter: newWallet(t)}
	cfg := config.Config{
		AdminIdentity: e.admin.id,
		MintAuthority: e.minter.id,
		JWTSecret:     testSecret,
		TokenTTL:      time.Hour,
		NonceTTL:      time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := ticketing.New(database.NewMemory(), token.NewLedger(cfg.MintAuthority), ticketing.NewPolicy(cfg.AdminIdentity), logger)

	e.app = fiber.New()
	router.SetupRoutes(e.app, handlers.New(service, cfg, logger), cfg.JWTSecret)
	return e
}

func (e env) do(t *testing.T, test Test) (int, envelope) {
	t.Helper()
	var body io.Reader
	if test.bodyinput != nil {
		raw, err := json.Marshal(test.bodyinput)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(test.method, test.route, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if test.token != "" {
		req.Header.Set("Authorization", "Bearer "+test.token)
	}

	res, err := e.app.Test(req, -1)
	require.NoError(t, err, test.description)
	defer res.Body.Close()

	var out envelope
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoErrorf(t, json.Unmarshal(raw, &out), "%s: body %s", test.description, raw)
	}
	return res.StatusCode, out
}

func (e env) nonce(t *testing.T, w wallet) string {
	t.Helper()
	code, res := e.do(t, Test{description: "nonce", method: "POST", route: "/auth/nonce",
		bodyinput: map[string]string{"identity": w.id.String()}})
	require.Equal(t, fiber.StatusOK, code)

	var data struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &data))
	require.NotEmpty(t, data.Nonce)
	return data.Nonce
}

func (e env) login(t *testing.T, w wallet) string {
	t.Helper()
	message := "Sign in to concert-tickets: " + e.nonce(t, w)
	code, res := e.do(t, Test{description: "login", method: "POST", route: "/auth/login",
		bodyinput: map[string]string{"identity": w.id.String(), "message": message, "signature": w.sign(message)}})
	require.Equal(t, fiber.StatusOK, code)

	var jwtToken string
	require.NoError(t, json.Unmarshal(res.Data, &jwtToken))
	return jwtToken
}

type remaining struct {
	RemainingTickets uint16 `json:"remaining_tickets"`
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	user := newWallet(t)
	other := newWallet(t)

	nonce := e.nonce(t, user)
	message := "Sign in to concert-tickets: " + nonce

	tests := []Test{
		{
			description:  "login without credentials",
			route:        "/auth/login",
			bodyinput:    map[string]string{},
			expectedCode: 400,
		},
		{
			description:  "login with malformed identity",
			route:        "/auth/login",
			bodyinput:    map[string]string{"identity": "not-base58-0OIl", "message": message, "signature": user.sign(message)},
			expectedCode: 400,
		},
		{
			description:  "signature from another wallet",
			route:        "/auth/login",
			bodyinput:    map[string]string{"identity": user.id.String(), "message": message, "signature": other.sign(message)},
			expectedCode: 401,
		},
		{
			description:  "message without the nonce",
			route:        "/auth/login",
			bodyinput:    map[string]string{"identity": other.id.String(), "message": "hello", "signature": other.sign("hello")},
			expectedCode: 401,
		},
		{
			description:  "valid wallet login",
			route:        "/auth/login",
			bodyinput:    map[string]string{"identity": user.id.String(), "message": message, "signature": user.sign(message)},
			expectedCode: 200,
		},
		{
			description:  "nonce cannot be replayed",
			route:        "/auth/login",
			bodyinput:    map[string]string{"identity": user.id.String(), "message": message, "signature": user.sign(message)},
			expectedCode: 401,
		},
		{
			description:  "nonce for malformed identity",
			route:        "/auth/nonce",
			bodyinput:    map[string]string{"identity": "abc"},
			expectedCode: 400,
		},
	}

	for _, test := range tests {
		test.method = "POST"
		code, _ := e.do(t, test)
		assert.Equalf(t, test.expectedCode, code, test.description)
	}
}

func TestLoginAfterForeignNonceRequests(t *testing.T) {
	e := newEnv(t)
	user := newWallet(t)

	message := "Sign in to concert-tickets: " + e.nonce(t, user)
	for i := 0; i < 3; i++ {
		e.nonce(t, user)
	}

	code, _ := e.do(t, Test{description: "login with first nonce", method: "POST", route: "/auth/login",
		bodyinput: map[string]string{"identity": user.id.String(), "message": message, "signature": user.sign(message)}})
	assert.Equal(t, fiber.StatusOK, code)
}

func TestLoginClaims(t *testing.T) {
	e := newEnv(t)
	user := newWallet(t)

	tests := []struct {
		description string
		wallet      wallet
		admin       bool
	}{
		{"regular wallet", user, false},
		{"admin wallet", e.admin, true},
	}

	for _, test := range tests {
		signed := e.login(t, test.wallet)
		parsed, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) {
			return []byte(testSecret), nil
		})
		require.NoErrorf(t, err, test.description)

		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equalf(t, test.wallet.id.String(), claims["sub"], test.description)
		assert.Equalf(t, test.admin, claims["admin"], test.description)
		assert.Containsf(t, claims, "exp", test.description)
	}
}

func TestConcertRoutes(t *testing.T) {
	e := newEnv(t)
	owner := newWallet(t)
	stranger := newWallet(t)
	ownerToken := e.login(t, owner)
	strangerToken := e.login(t, stranger)
	adminToken := e.login(t, e.admin)

	code, res := e.do(t, Test{description: "register concert", method: "POST", route: "/concerts", token: ownerToken,
		bodyinput: map[string]interface{}{"name": "Show", "venue": "Hall", "date": "2025-01-01", "total_tickets": 100}})
	require.Equal(t, fiber.StatusCreated, code)
	concert := decode[model.Concert](t, res.Data)
	assert.Equal(t, owner.id, concert.Authority)
	assert.Equal(t, uint16(100), concert.TotalTickets)
	assert.Equal(t, uint16(0), concert.TicketsSold)
	assert.Equal(t, uint16(100), decode[remaining](t, res.Data).RemainingTickets)

	unknown := "/concerts/1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	tests := []Test{
		{
			description:  "register without token",
			method:       "POST",
			route:        "/concerts",
			bodyinput:    map[string]interface{}{"name": "Show", "total_tickets": 1},
			expectedCode: 400,
		},
		{
			description:  "register with forged token",
			method:       "POST",
			route:        "/concerts",
			token:        "a.b.c",
			bodyinput:    map[string]interface{}{"name": "Show", "total_tickets": 1},
			expectedCode: 401,
		},
		{
			description:  "capacity above 16 bits",
			method:       "POST",
			route:        "/concerts",
			token:        ownerToken,
			bodyinput:    map[string]interface{}{"name": "Show", "total_tickets": 70000},
			expectedCode: 400,
		},
		{
			description:  "negative capacity",
			method:       "POST",
			route:        "/concerts",
			token:        ownerToken,
			bodyinput:    map[string]interface{}{"name": "Show", "total_tickets": -1},
			expectedCode: 400,
		},
		{
			description:  "missing capacity",
			method:       "POST",
			route:        "/concerts",
			token:        ownerToken,
			bodyinput:    map[string]interface{}{"name": "Show"},
			expectedCode: 400,
		},
		{
			description:  "name too long",
			method:       "POST",
			route:        "/concerts",
			token:        ownerToken,
			bodyinput:    map[string]interface{}{"name": strings.Repeat("n", 51), "total_tickets": 1},
			expectedCode: 400,
		},
		{
			description:  "malformed concert id",
			method:       "GET",
			route:        "/concerts/42",
			expectedCode: 400,
		},
		{
			description:  "unknown concert",
			method:       "GET",
			route:        unknown,
			expectedCode: 404,
		},
		{
			description:  "stranger updates concert",
			method:       "PUT",
			route:        "/concerts/" + concert.ID,
			token:        strangerToken,
			bodyinput:    map[string]interface{}{"name": "Mine now", "total_tickets": 5},
			expectedCode: 403,
		},
		{
			description:  "admin updates concert",
			method:       "PUT",
			route:        "/concerts/" + concert.ID,
			token:        adminToken,
			bodyinput:    map[string]interface{}{"name": "Show", "venue": "Arena", "date": "2025-01-02", "total_tickets": 2},
			expectedCode: 200,
		},
		{
			description:  "stranger deletes concert",
			method:       "DELETE",
			route:        "/concerts/" + concert.ID,
			token:        strangerToken,
			expectedCode: 403,
		},
		{
			description:  "list concerts",
			method:       "GET",
			route:        "/concerts",
			expectedCode: 200,
		},
	}

	for _, test := range tests {
		code, _ := e.do(t, test)
		assert.Equalf(t, test.expectedCode, code, test.description)
	}

	code, res = e.do(t, Test{description: "get concert", method: "GET", route: "/concerts/" + concert.ID})
	require.Equal(t, fiber.StatusOK, code)
	updated := decode[model.Concert](t, res.Data)
	assert.Equal(t, "Arena", updated.Venue)
	assert.Equal(t, uint16(2), updated.TotalTickets)
	assert.Equal(t, owner.id, updated.Authority)

	code, res = e.do(t, Test{description: "list concerts", method: "GET", route: "/concerts"})
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, decode[[]model.Concert](t, res.Data), 1)

	code, res = e.do(t, Test{description: "owner deletes concert", method: "DELETE", route: "/concerts/" + concert.ID, token: ownerToken})
	require.Equal(t, fiber.StatusOK, code)
	result := decode[ticketing.DeleteConcertResult](t, res.Data)
	assert.Equal(t, owner.id, result.RefundTo)
	assert.Equal(t, ticketing.RoleOwner, result.Role)

	code, _ = e.do(t, Test{description: "get deleted concert", method: "GET", route: "/concerts/" + concert.ID})
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestTicketRoutes(t *testing.T) {
	e := newEnv(t)
	owner := newWallet(t)
	buyer := newWallet(t)
	ownerToken := e.login(t, owner)
	buyerToken := e.login(t, buyer)

	code, res := e.do(t, Test{description: "register concert", method: "POST", route: "/concerts", token: ownerToken,
		bodyinput: map[string]interface{}{"name": "Show", "venue": "Hall", "date": "2025-01-01", "total_tickets": 2}})
	require.Equal(t, fiber.StatusCreated, code)
	concert := decode[model.Concert](t, res.Data)
	ticketsRoute := "/concerts/" + concert.ID + "/tickets"

	code, res = e.do(t, Test{description: "issue first ticket", method: "POST", route: ticketsRoute, token: buyerToken,
		bodyinput: map[string]interface{}{"ticket_type": "VIP", "seat_number": "A1"}})
	require.Equal(t, fiber.StatusCreated, code)
	ticket := decode[model.Ticket](t, res.Data)
	assert.Equal(t, buyer.id, ticket.Owner)
	assert.False(t, ticket.Used)
	require.NotNil(t, ticket.SeatNumber)
	assert.Equal(t, "A1", *ticket.SeatNumber)

	tests := []Test{
		{
			description:  "issue without token",
			method:       "POST",
			route:        ticketsRoute,
			bodyinput:    map[string]interface{}{"ticket_type": "VIP"},
			expectedCode: 400,
		},
		{
			description:  "ticket type too long",
			method:       "POST",
			route:        ticketsRoute,
			token:        buyerToken,
			bodyinput:    map[string]interface{}{"ticket_type": strings.Repeat("t", 21)},
			expectedCode: 400,
		},
		{
			description:  "issue last ticket without seat",
			method:       "POST",
			route:        ticketsRoute,
			token:        buyerToken,
			bodyinput:    map[string]interface{}{"ticket_type": "General"},
			expectedCode: 201,
		},
		{
			description:  "sold out",
			method:       "POST",
			route:        ticketsRoute,
			token:        buyerToken,
			bodyinput:    map[string]interface{}{"ticket_type": "General"},
			expectedCode: 409,
		},
		{
			description:  "concert owner cannot redeem buyer's ticket",
			method:       "POST",
			route:        "/tickets/" + ticket.ID + "/redeem",
			token:        ownerToken,
			expectedCode: 403,
		},
		{
			description:  "buyer redeems ticket",
			method:       "POST",
			route:        "/tickets/" + ticket.ID + "/redeem",
			token:        buyerToken,
			expectedCode: 200,
		},
		{
			description:  "redeem twice",
			method:       "POST",
			route:        "/tickets/" + ticket.ID + "/redeem",
			token:        buyerToken,
			expectedCode: 409,
		},
		{
			description:  "my tickets without token",
			method:       "GET",
			route:        "/tickets/mine",
			expectedCode: 400,
		},
		{
			description:  "unknown ticket",
			method:       "GET",
			route:        "/tickets/1b4e28ba-2fa1-11d2-883f-0016d3cca427",
			expectedCode: 404,
		},
	}

	for _, test := range tests {
		code, _ := e.do(t, test)
		assert.Equalf(t, test.expectedCode, code, test.description)
	}

	code, res = e.do(t, Test{description: "sold out message", method: "POST", route: ticketsRoute, token: buyerToken,
		bodyinput: map[string]interface{}{"ticket_type": "General"}})
	assert.Equal(t, fiber.StatusConflict, code)
	assert.Equal(t, "SoldOut", res.Message)
	assert.Equal(t, "error", res.Status)

	code, res = e.do(t, Test{description: "sold out concert", method: "GET", route: "/concerts/" + concert.ID})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, uint16(2), decode[model.Concert](t, res.Data).TicketsSold)
	assert.Equal(t, uint16(0), decode[remaining](t, res.Data).RemainingTickets)

	code, res = e.do(t, Test{description: "my tickets", method: "GET", route: "/tickets/mine", token: buyerToken})
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, decode[[]model.Ticket](t, res.Data), 2)

	code, res = e.do(t, Test{description: "concert tickets", method: "GET", route: ticketsRoute})
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, decode[[]model.Ticket](t, res.Data), 2)

	code, res = e.do(t, Test{description: "verify ticket", method: "GET", route: "/tickets/" + ticket.ID + "/verify"})
	require.Equal(t, fiber.StatusOK, code)
	status := decode[ticketing.TicketStatus](t, res.Data)
	assert.True(t, status.Used)
	assert.True(t, status.ConcertExists)
	assert.True(t, status.TokenHeld)

	code, res = e.do(t, Test{description: "get ticket", method: "GET", route: "/tickets/" + ticket.ID})
	require.Equal(t, fiber.StatusOK, code)
	stored := decode[model.Ticket](t, res.Data)
	assert.True(t, stored.Used)
	assert.NotNil(t, stored.RedeemedAt)
}
