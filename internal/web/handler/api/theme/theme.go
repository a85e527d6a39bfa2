// Package theme provides the theme endpoints of the API.
package theme

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"

	"github.com/cardforge/cardforge/internal/auth"
	themectl "github.com/cardforge/cardforge/internal/db/controller/theme"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/policy"
	"github.com/cardforge/cardforge/internal/subscription"
	"github.com/cardforge/cardforge/internal/web/handler"
)

// Path is the theme collection of the API.
const Path = handler.APIPath + "/themes"

// Input is the theme form.
type Input struct {
	Name     string             `json:"name"     validate:"required,max=100"`
	IsPublic bool               `json:"isPublic"`
	Config   models.ThemeConfig `json:"config"`
}

// Service is the theme handler service.
type Service struct {
	deps   *handler.Deps
	policy policy.ThemePolicy
}

// Handler is the theme handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.Subscriptions == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequireUser())
		router.Get(handler.RouterRootPath, s.List)
		router.Post(handler.RouterRootPath, auth.RequirePermission(deps.Auth, auth.PermThemesManage), s.Create)
		router.Get("/:id", s.Show)
		router.Put("/:id", auth.RequirePermission(deps.Auth, auth.PermThemesManage), s.Update)
		router.Delete("/:id", auth.RequirePermission(deps.Auth, auth.PermThemesManage), s.Delete)
	})

	return nil
}

// List returns the themes the user may pick from.
func (s *Service) List(c *fiber.Ctx) error {
	user := handler.User(c)

	themes, err := themectl.Visible(s.deps.DB.WithContext(c.UserContext()), user.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"items": themes})
}

// Create adds a personal theme within the plan limit.
func (s *Service) Create(c *fiber.Ctx) error {
	user := handler.User(c)
	if err := policy.Authorize[models.Theme](s.policy, user, policy.Create, nil); err != nil {
		return err
	}

	in := new(Input)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	ctx := c.UserContext()
	if err := s.deps.Subscriptions.Ensure(ctx, user, subscription.FeatureThemes); err != nil {
		return err
	}

	owner := user.ID
	created := &models.Theme{
		UserID:   &owner,
		Name:     in.Name,
		IsPublic: in.IsPublic,
		Config:   datatypes.NewJSONType(in.Config),
	}

	if err := themectl.Create(s.deps.DB.WithContext(ctx), created); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// Show returns one theme.
func (s *Service) Show(c *fiber.Ctx) error {
	found, err := s.find(c, policy.View)
	if err != nil {
		return err
	}

	return c.JSON(found)
}

// Update changes a personal theme.
func (s *Service) Update(c *fiber.Ctx) error {
	found, err := s.find(c, policy.Update)
	if err != nil {
		return err
	}

	in := new(Input)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	found.Name = in.Name
	found.IsPublic = in.IsPublic
	found.Config = datatypes.NewJSONType(in.Config)

	db := s.deps.DB.WithContext(c.UserContext())
	if err := themectl.Update(db, found); err != nil {
		return err
	}

	updated, err := themectl.Get(db, found.ID)
	if err != nil {
		return err
	}

	return c.JSON(updated)
}

// Delete moves a personal theme to the trash.
func (s *Service) Delete(c *fiber.Ctx) error {
	found, err := s.find(c, policy.Delete)
	if err != nil {
		return err
	}

	if err := themectl.Delete(s.deps.DB.WithContext(c.UserContext()), found.ID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Service) find(c *fiber.Ctx, action policy.Action) (*models.Theme, error) {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return nil, err
	}

	found, err := themectl.Get(s.deps.DB.WithContext(c.UserContext()), uint(id))
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize[models.Theme](s.policy, handler.User(c), action, found); err != nil {
		return nil, err
	}

	return found, nil
}
