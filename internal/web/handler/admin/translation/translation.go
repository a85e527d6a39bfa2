// Package translation provides the admin pages of the translation history.
package translation

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/internal/auth"
	trctl "github.com/cardforge/cardforge/internal/db/controller/translation"
	"github.com/cardforge/cardforge/internal/web/handler"
)

// Path is the base path of the translation history pages.
const Path = handler.AdminPath + "/translations"

// Service is the translation history handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the translation history handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequirePermission(deps.Auth, auth.PermAdminTranslations))
		router.Get(handler.RouterRootPath, s.List)
		router.Get("/:id", s.Show)
		router.Delete("/:id", s.Delete)
	})

	return nil
}

// List filters the history by user, locales and status.
func (s *Service) List(c *fiber.Ctx) error {
	f := trctl.Filter{
		UserID:       uint64(c.QueryInt("user")),
		SourceLocale: c.Query("source"),
		TargetLocale: c.Query("target"),
		Status:       c.Query("status"),
	}

	page, size := handler.Pagination(c)

	entries, total, err := trctl.List(s.deps.DB.WithContext(c.UserContext()), f, page, size)
	if err != nil {
		return err
	}

	return c.JSON(handler.NewPage(entries, total, page, size))
}

// Show returns one entry.
func (s *Service) Show(c *fiber.Ctx) error {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return err
	}

	entry, err := trctl.Get(s.deps.DB.WithContext(c.UserContext()), id)
	if err != nil {
		return err
	}

	return c.JSON(entry)
}

// Delete removes one entry.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return err
	}

	if err := trctl.Delete(s.deps.DB.WithContext(c.UserContext()), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
