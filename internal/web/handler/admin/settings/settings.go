// Package settings provides the admin pages of the settings groups.
package settings

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/settings"
	"github.com/cardforge/cardforge/internal/web/handler"
)

// Path is the base path of the settings pages.
const Path = handler.AdminPath + "/settings"

// Service is the settings handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the settings handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.Settings == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequirePermission(deps.Auth, auth.PermAdminSettings))
		router.Get(handler.RouterRootPath, s.Groups)
		router.Get("/:group", s.Show)
		router.Put("/:group", s.Update)
		router.Post("/:group", s.Update)
	})

	return nil
}

// Groups lists the group names.
func (s *Service) Groups(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"items": settings.Names()})
}

// Show returns a group with its secrets redacted.
func (s *Service) Show(c *fiber.Ctx) error {
	g, err := s.deps.Settings.LoadByName(c.UserContext(), c.Params("group"))
	if err != nil {
		return err
	}

	return c.JSON(redacted(g))
}

// Update replaces the fields sent in the body. Secrets sent back redacted keep their stored value.
func (s *Service) Update(c *fiber.Ctx) error {
	ctx := c.UserContext()
	name := c.Params("group")

	prev, err := s.deps.Settings.LoadByName(ctx, name)
	if err != nil {
		return err
	}

	next, err := s.deps.Settings.LoadByName(ctx, name)
	if err != nil {
		return err
	}

	if err := c.BodyParser(next); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if holder, ok := next.(settings.SecretHolder); ok {
		holder.KeepSecrets(prev)
	}

	if err := s.deps.Settings.Save(ctx, next); err != nil {
		return err
	}

	log.Info().Str("group", name).Uint64("by", handler.User(c).ID).Msg("settings saved")

	return c.JSON(redacted(next))
}

func redacted(g settings.Group) settings.Group {
	if holder, ok := g.(settings.SecretHolder); ok {
		return holder.Redact()
	}

	return g
}
