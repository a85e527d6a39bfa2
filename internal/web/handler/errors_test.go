package handler_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cardctl "github.com/cardforge/cardforge/internal/db/controller/card"
	"github.com/cardforge/cardforge/internal/otp"
	"github.com/cardforge/cardforge/internal/payment"
	"github.com/cardforge/cardforge/internal/policy"
	"github.com/cardforge/cardforge/internal/subscription"
	"github.com/cardforge/cardforge/internal/web/handler"
	"github.com/cardforge/cardforge/internal/web/handler/handlertest"
	"github.com/cardforge/cardforge/internal/web/session"
)

type form struct {
	Email string `json:"email" validate:"required,email"`
}

func TestErrorHandlerStatusMapping(t *testing.T) {
	env := handlertest.New(t)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"sentinel", cardctl.ErrCardNotFound, http.StatusNotFound, cardctl.ErrCardNotFound.Error()},
		{"wrapped sentinel", fmt.Errorf("lookup: %w", policy.ErrForbidden), http.StatusForbidden, ""},
		{"fiber error", fiber.NewError(http.StatusTeapot, "short and stout"), http.StatusTeapot, "short and stout"},
		{"gateway error", &payment.GatewayError{Gateway: "moyasar", Op: "process", Err: errors.New("dial tcp")}, http.StatusBadGateway, ""},
		{"limit json", &subscription.LimitExceededError{Feature: "cards", Limit: 1}, http.StatusForbidden, ""},
		{"callback without reference", payment.ErrMissingReference, http.StatusBadRequest, payment.ErrMissingReference.Error()},
		{"foreign reference", payment.ErrReferenceMismatch, http.StatusUnprocessableEntity, payment.ErrReferenceMismatch.Error()},
		{"unknown", errors.New("db exploded"), http.StatusInternalServerError, "Something went wrong, please try again later."},
	}

	for i, tt := range tests {
		err := tt.err
		env.App.Get(fmt.Sprintf("/api/v1/fail/%d", i), func(*fiber.Ctx) error { return err })
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.Do(nil, http.MethodGet, fmt.Sprintf("/api/v1/fail/%d", i), nil)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, handlertest.Decode[map[string]any](t, resp)["message"])
			}
		})
	}
}

func TestErrorHandlerCooldown(t *testing.T) {
	env := handlertest.New(t)
	env.App.Get("/api/v1/cooldown", func(*fiber.Ctx) error {
		return &otp.CooldownError{Remaining: 42500 * time.Millisecond}
	})

	resp := env.Do(nil, http.MethodGet, "/api/v1/cooldown", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "43", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.InDelta(t, 43, handlertest.Decode[map[string]any](t, resp)["cooldownSeconds"], 0)
}

func TestErrorHandlerValidation(t *testing.T) {
	env := handlertest.New(t)
	env.App.Post("/api/v1/form", func(c *fiber.Ctx) error {
		return handler.Bind(c, env.Deps.Validator, new(form))
	})

	resp := env.Do(nil, http.MethodPost, "/api/v1/form", form{Email: "nope"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := handlertest.Decode[struct {
		Errors map[string][]string `json:"errors"`
	}](t, resp)
	assert.Equal(t, []string{"The email field must be a valid email address."}, body.Errors["email"])
}

func TestLimitExceededJSON(t *testing.T) {
	env := handlertest.New(t)
	env.App.Get("/api/v1/limit", func(*fiber.Ctx) error {
		return &subscription.LimitExceededError{Feature: "cards", Limit: 3}
	})

	resp := env.Do(nil, http.MethodGet, "/api/v1/limit", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	body := handlertest.Decode[map[string]any](t, resp)
	assert.Equal(t, "cards", body["feature"])
	assert.InDelta(t, 3, body["limit"], 0)
	assert.Equal(t, "your plan allows 3 cards, upgrade to add more", body["message"])
}

func TestLimitExceededFlashesBrowsers(t *testing.T) {
	env := handlertest.New(t)
	env.App.Post("/cards/new", func(*fiber.Ctx) error {
		return &subscription.LimitExceededError{Feature: "cards", Limit: 1}
	})

	sessionID := session.GenerateSessionID()
	require.NoError(t, (&session.Data{UserID: 1}).Write(sessionID, time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/cards/new", nil)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMETextHTML)
	req.Header.Set(fiber.HeaderReferer, "/cards")
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sessionID})

	resp := env.Send(req)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/cards", resp.Header.Get(fiber.HeaderLocation))

	flash, err := session.PopFlash(sessionID, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"your plan allows 1 cards, upgrade to add more"}, flash)
}

func TestPagination(t *testing.T) {
	env := handlertest.New(t)
	env.App.Get("/api/v1/page", func(c *fiber.Ctx) error {
		page, size := handler.Pagination(c)

		return c.JSON(fiber.Map{"page": page, "size": size})
	})

	tests := []struct {
		query    string
		wantPage float64
		wantSize float64
	}{
		{"", 1, handler.DefaultPageSize},
		{"?page=3&pageSize=5", 3, 5},
		{"?page=-1&pageSize=0", 1, handler.DefaultPageSize},
		{"?pageSize=1000", 1, handler.MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := handlertest.Decode[map[string]float64](t, env.Do(nil, http.MethodGet, "/api/v1/page"+tt.query, nil))
			assert.InDelta(t, tt.wantPage, got["page"], 0)
			assert.InDelta(t, tt.wantSize, got["size"], 0)
		})
	}
}
