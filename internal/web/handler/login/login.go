package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/web/handler"
	"github.com/cardforge/cardforge/internal/web/session"
)

const (
	// Path is the path to the login endpoint.
	Path = "/login"
)

// Credentials is the login form.
type Credentials struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// Service is the login handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.Local == nil {
		return errors.New("app or deps is nil")
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.Get)
		router.Post(handler.RouterRootPath, s.Post)
	})

	return nil
}

// Get reports the available sign-in methods.
func (s *Service) Get(c *fiber.Ctx) error {
	authSettings, err := s.deps.Settings.Auth(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"local":        true,
		"google":       authSettings.GoogleLoginEnabled,
		"registration": authSettings.RegistrationEnabled,
	})
}

// Post handles the login form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	creds := new(Credentials)
	if err := handler.Bind(c, s.deps.Validator, creds); err != nil {
		return err
	}

	user, err := s.deps.Local.Authenticate(creds.Username, creds.Password)

	switch {
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidPassword):
		return fiber.NewError(fiber.StatusUnauthorized, ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrUserAccountDisabled):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case err != nil:
		log.Error().Err(err).Msg("login failed")
		return ErrInternalServerError
	}

	if err := Start(c, s.deps, user); err != nil {
		return err
	}

	if !handler.WantsJSON(c) {
		return c.Redirect(handler.RootPath, fiber.StatusSeeOther)
	}

	return c.JSON(fiber.Map{"user": user})
}

// Start opens a session for user and sets the session cookie.
func Start(c *fiber.Ctx, deps *handler.Deps, user *models.User) error {
	sessionID := session.GenerateSessionID()
	expiry := deps.Cfg.Webserver.Session.ExpiryTime

	userSession := &session.Data{UserID: user.ID}
	if err := userSession.Write(sessionID, expiry); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return ErrInternalServerError
	}

	c.Cookie(session.Cookie(sessionID, expiry, !deps.Cfg.DevMode))
	c.Locals(auth.LocalsUser, user)
	c.Locals(auth.LocalsUserID, user.ID)

	log.Info().Str("username", user.Username).Msg("user logged in")

	return nil
}
