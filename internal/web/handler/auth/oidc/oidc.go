package oidc

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/web/handler"
	"github.com/cardforge/cardforge/internal/web/handler/login"
)

const (
	// LoginPath is the path to initiate OIDC login.
	LoginPath = handler.RootPath + "auth/oidc/login"

	// CallbackPath is the path for OIDC callback.
	CallbackPath = auth.CallbackPath
)

// Service is the OIDC handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the OIDC handler.
var Handler = Service{}

// Init registers the routes. They answer 403 while Google sign-in is disabled in the auth settings.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.OIDC == nil || deps.States == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Get(LoginPath, s.Login)
	app.Get(CallbackPath, s.Callback)

	return nil
}

// Login initiates the OIDC login flow.
func (s *Service) Login(c *fiber.Ctx) error {
	provider, err := s.deps.OIDC.Provider()
	if err != nil {
		return err
	}

	return c.Redirect(provider.GetAuthURL(s.deps.States.Issue()))
}

// Callback handles the OIDC callback.
func (s *Service) Callback(c *fiber.Ctx) error {
	provider, err := s.deps.OIDC.Provider()
	if err != nil {
		return err
	}

	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		log.Error().Msg("Missing code or state in OIDC callback")
		return fiber.NewError(fiber.StatusBadRequest, "Invalid callback parameters")
	}

	if !s.deps.States.Consume(state) {
		log.Error().Msg("Invalid or expired state token")
		return fiber.NewError(fiber.StatusBadRequest, "Invalid state token")
	}

	user, err := provider.HandleCallback(c.UserContext(), code)
	if err != nil {
		log.Error().Err(err).Msg("OIDC authentication failed")

		if errors.Is(err, auth.ErrUserAccountDisabled) || errors.Is(err, auth.ErrEmailNotVerified) {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}

		return fiber.NewError(fiber.StatusUnauthorized, "Authentication failed")
	}

	if err := login.Start(c, s.deps, user); err != nil {
		return err
	}

	log.Info().Str("username", user.Username).Msg("User logged in successfully via OIDC")

	return c.Redirect(handler.RootPath)
}
