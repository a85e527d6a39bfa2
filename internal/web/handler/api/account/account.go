// Package account provides registration, API tokens and the profile of the signed in user.
package account

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/subscription"
	"github.com/cardforge/cardforge/internal/web/handler"
	"github.com/cardforge/cardforge/internal/web/handler/login"
	"github.com/cardforge/cardforge/internal/web/session"
)

const (
	// AuthPath groups registration and token endpoints.
	AuthPath = handler.APIPath + "/auth"
	// MePath is the profile of the signed in user.
	MePath = handler.APIPath + "/me"
)

// ErrRegistrationDisabled is returned while the auth settings close sign-ups.
var ErrRegistrationDisabled = errors.New("registration is disabled")

// Profile is the editable part of the own account.
type Profile struct {
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName"  validate:"max=100"`
	Phone     string `json:"phone"     validate:"omitempty,e164"`
	Locale    string `json:"locale"    validate:"omitempty,bcp47_language_tag"`
}

// PasswordChange is the password form.
type PasswordChange struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

// Service is the account handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the account handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.Local == nil || deps.Settings == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(AuthPath, func(router fiber.Router) {
		router.Post("/register", s.Register)
		router.Post("/token", s.Token)
	})

	app.Route(MePath, func(router fiber.Router) {
		router.Use(auth.RequireUser())
		router.Get(handler.RouterRootPath, s.Me)
		router.Put(handler.RouterRootPath, s.UpdateProfile)
		router.Put("/password", s.ChangePassword)
	})

	return nil
}

// Register creates an account and signs it in.
func (s *Service) Register(c *fiber.Ctx) error {
	authSettings, err := s.deps.Settings.Auth(c.UserContext())
	if err != nil {
		return err
	}

	if !authSettings.RegistrationEnabled {
		return fiber.NewError(fiber.StatusForbidden, ErrRegistrationDisabled.Error())
	}

	in := new(auth.Registration)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	if in.Locale == "" {
		if general, gerr := s.deps.Settings.General(c.UserContext()); gerr == nil {
			in.Locale = general.DefaultLocale
		}
	}

	user, err := s.deps.Local.Register(*in)
	if err != nil {
		return err
	}

	log.Info().Str("username", user.Username).Msg("account registered")

	if err := login.Start(c, s.deps, user); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":                      user,
		"phoneVerificationRequired": authSettings.PhoneVerificationRequired,
	})
}

// Token exchanges credentials for an API token.
func (s *Service) Token(c *fiber.Ctx) error {
	if s.deps.Tokens == nil {
		return fiber.NewError(fiber.StatusNotFound, auth.ErrTokensDisabled.Error())
	}

	creds := new(login.Credentials)
	if err := handler.Bind(c, s.deps.Validator, creds); err != nil {
		return err
	}

	user, err := s.deps.Local.Authenticate(creds.Username, creds.Password)

	switch {
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidPassword):
		return fiber.NewError(fiber.StatusUnauthorized, login.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrUserAccountDisabled):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case err != nil:
		return err
	}

	token, expires, err := s.deps.Tokens.Issue(user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token":     token,
		"tokenType": "Bearer",
		"expiresAt": expires,
	})
}

// Me returns the signed in user with permissions, current plan and pending flash messages.
func (s *Service) Me(c *fiber.Ctx) error {
	user := handler.User(c)

	permissions, err := s.deps.Auth.GetUserPermissions(user.ID)
	if err != nil {
		return err
	}

	out := fiber.Map{
		"user":        user,
		"permissions": permissions,
	}

	if s.deps.Subscriptions != nil {
		current, err := s.deps.Subscriptions.Plan(c.UserContext(), user.ID)
		if err != nil && !errors.Is(err, subscription.ErrPlanNotFound) {
			return err
		}

		out["plan"] = current
	}

	if sessionID := c.Cookies(session.CookieName); sessionID != "" {
		flash, err := session.PopFlash(sessionID, s.deps.Cfg.Webserver.Session.ExpiryTime)
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			log.Warn().Err(err).Msg("failed to read flash messages")
		}

		out["flash"] = flash
	}

	return c.JSON(out)
}

// UpdateProfile changes name, phone and locale.
func (s *Service) UpdateProfile(c *fiber.Ctx) error {
	in := new(Profile)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	user := handler.User(c)
	if err := s.deps.Local.UpdateProfile(user.ID, in.FirstName, in.LastName, in.Phone, in.Locale); err != nil {
		return err
	}

	updated, err := s.deps.Local.GetUserByID(user.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"user": updated})
}

// ChangePassword changes the password of a local account.
func (s *Service) ChangePassword(c *fiber.Ctx) error {
	in := new(PasswordChange)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	if err := s.deps.Local.ChangePassword(handler.User(c).ID, in.OldPassword, in.NewPassword); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
