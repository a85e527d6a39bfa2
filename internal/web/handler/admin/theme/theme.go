// Package theme provides the admin pages of the platform themes.
package theme

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/auth"
	themectl "github.com/cardforge/cardforge/internal/db/controller/theme"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/web/handler"
)

// Path is the base path of the theme pages.
const Path = handler.AdminPath + "/themes"

// Input is the form of platform themes, they have no owner and are always public.
type Input struct {
	Name            string             `json:"name"            validate:"required,max=100"`
	IsSystemDefault bool               `json:"isSystemDefault"`
	IsDefault       bool               `json:"isDefault"`
	Config          models.ThemeConfig `json:"config"`
}

// Service is the theme handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the theme handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequirePermission(deps.Auth, auth.PermAdminThemes))
		router.Get(handler.RouterRootPath, s.List)
		router.Post(handler.RouterRootPath, s.Create)
		router.Put("/:id", s.Update)
		router.Post("/:id/default", s.SetDefault)
		router.Delete("/:id", s.Delete)
		router.Post("/:id/restore", s.Restore)
		router.Delete("/:id/force", s.ForceDelete)
	})

	return nil
}

// List returns every theme, ?trashed=true includes deleted ones.
func (s *Service) List(c *fiber.Ctx) error {
	themes, err := themectl.All(s.deps.DB.WithContext(c.UserContext()), c.QueryBool("trashed"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"items": themes})
}

// Create adds a platform theme.
func (s *Service) Create(c *fiber.Ctx) error {
	in := new(Input)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	created := &models.Theme{
		Name:            in.Name,
		IsPublic:        true,
		IsSystemDefault: in.IsSystemDefault,
		IsDefault:       in.IsDefault,
		Config:          datatypes.NewJSONType(in.Config),
	}

	if err := themectl.Create(s.deps.DB.WithContext(c.UserContext()), created); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// Update changes name and config of a theme. System default themes stay read only.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return err
	}

	in := new(Input)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	db := s.deps.DB.WithContext(c.UserContext())

	found, err := themectl.Get(db, uint(id))
	if err != nil {
		return err
	}

	found.Name = in.Name
	found.Config = datatypes.NewJSONType(in.Config)

	if err := themectl.Update(db, found); err != nil {
		return err
	}

	return c.JSON(found)
}

// SetDefault makes a theme the default of new cards.
func (s *Service) SetDefault(c *fiber.Ctx) error {
	return s.apply(c, themectl.SetDefault, fiber.StatusOK)
}

// Delete soft deletes a theme.
func (s *Service) Delete(c *fiber.Ctx) error {
	return s.apply(c, themectl.Delete, fiber.StatusNoContent)
}

// Restore brings a deleted theme back.
func (s *Service) Restore(c *fiber.Ctx) error {
	return s.apply(c, themectl.Restore, fiber.StatusOK)
}

// ForceDelete removes a theme for good.
func (s *Service) ForceDelete(c *fiber.Ctx) error {
	return s.apply(c, themectl.ForceDelete, fiber.StatusNoContent)
}

func (s *Service) apply(c *fiber.Ctx, op func(db *gorm.DB, id uint) error, status int) error {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return err
	}

	db := s.deps.DB.WithContext(c.UserContext())
	if err := op(db, uint(id)); err != nil {
		return err
	}

	if status == fiber.StatusNoContent {
		return c.SendStatus(status)
	}

	found, err := themectl.Get(db, uint(id))
	if err != nil {
		return err
	}

	return c.Status(status).JSON(found)
}
