// Package language provides the admin pages of the offered languages.
package language

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/internal/auth"
	langctl "github.com/cardforge/cardforge/internal/db/controller/language"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/web/handler"
)

// Path is the base path of the language pages.
const Path = handler.AdminPath + "/languages"

// Input is the language form. An empty direction is derived from the script of the code.
type Input struct {
	Code       string `json:"code"       validate:"required,max=16"`
	Name       string `json:"name"       validate:"required,max=100"`
	NativeName string `json:"nativeName" validate:"max=100"`
	Direction  string `json:"direction"  validate:"omitempty,oneof=ltr rtl"`
	IsActive   bool   `json:"isActive"`
	IsDefault  bool   `json:"isDefault"`
	SortOrder  int    `json:"sortOrder"`
}

func (in *Input) language() *models.Language {
	return &models.Language{
		Code:       in.Code,
		Name:       in.Name,
		NativeName: in.NativeName,
		Direction:  in.Direction,
		IsActive:   in.IsActive,
		IsDefault:  in.IsDefault,
		SortOrder:  in.SortOrder,
	}
}

// Service is the language handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the language handler.
var Handler = Service{}

// Init registers the routes. The active languages are public.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Get(handler.APIPath+"/languages", s.Active)

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequirePermission(deps.Auth, auth.PermAdminLanguages))
		router.Get(handler.RouterRootPath, s.List)
		router.Post(handler.RouterRootPath, s.Create)
		router.Get("/:id", s.Show)
		router.Put("/:id", s.Update)
		router.Post("/:id/default", s.SetDefault)
		router.Delete("/:id", s.Delete)
	})

	return nil
}

// Active lists the languages users can pick.
func (s *Service) Active(c *fiber.Ctx) error {
	return s.list(c, true)
}

// List lists all languages.
func (s *Service) List(c *fiber.Ctx) error {
	return s.list(c, false)
}

func (s *Service) list(c *fiber.Ctx, activeOnly bool) error {
	languages, err := langctl.List(s.deps.DB.WithContext(c.UserContext()), activeOnly)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"items": languages})
}

// Create adds a language.
func (s *Service) Create(c *fiber.Ctx) error {
	in := new(Input)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	created := in.language()
	if err := langctl.Create(s.deps.DB.WithContext(c.UserContext()), created); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// Show returns one language.
func (s *Service) Show(c *fiber.Ctx) error {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return err
	}

	found, err := langctl.Get(s.deps.DB.WithContext(c.UserContext()), uint(id))
	if err != nil {
		return err
	}

	return c.JSON(found)
}

// Update changes a language.
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

	edit := in.language()
	edit.ID = uint(id)

	if err := langctl.Update(db, edit); err != nil {
		return err
	}

	updated, err := langctl.Get(db, edit.ID)
	if err != nil {
		return err
	}

	return c.JSON(updated)
}

// SetDefault makes a language the default one.
func (s *Service) SetDefault(c *fiber.Ctx) error {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return err
	}

	db := s.deps.DB.WithContext(c.UserContext())
	if err := langctl.SetDefault(db, uint(id)); err != nil {
		return err
	}

	updated, err := langctl.Get(db, uint(id))
	if err != nil {
		return err
	}

	return c.JSON(updated)
}

// Delete removes a language other than the default one.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return err
	}

	if err := langctl.Delete(s.deps.DB.WithContext(c.UserContext()), uint(id)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
