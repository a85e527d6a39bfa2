// Package plan provides the admin pages of the subscription plans.
package plan

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/internal/auth"
	planctl "github.com/cardforge/cardforge/internal/db/controller/plan"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/web/handler"
)

// Path is the base path of the plan pages.
const Path = handler.AdminPath + "/plans"

// View is a plan with its price in major units, the way the admin form edits it.
type View struct {
	models.SubscriptionPlan
	Price float64 `json:"price"`
}

func view(p *models.SubscriptionPlan) View {
	return View{SubscriptionPlan: *p, Price: planctl.ToMajor(p.PriceMinor, p.Currency)}
}

// Service is the plan handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the plan handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequirePermission(deps.Auth, auth.PermAdminPlans))
		router.Get(handler.RouterRootPath, s.List)
		router.Post(handler.RouterRootPath, s.Create)
		router.Get("/:id", s.Show)
		router.Put("/:id", s.Update)
		router.Delete("/:id", s.Delete)
	})

	return nil
}

// List returns all plans.
func (s *Service) List(c *fiber.Ctx) error {
	plans, err := planctl.List(s.deps.DB.WithContext(c.UserContext()), false)
	if err != nil {
		return err
	}

	items := make([]View, 0, len(plans))
	for i := range plans {
		items = append(items, view(&plans[i]))
	}

	return c.JSON(fiber.Map{"items": items})
}

// Create adds a plan.
func (s *Service) Create(c *fiber.Ctx) error {
	in := new(planctl.Input)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	p, err := planctl.Shape(*in)
	if err != nil {
		return err
	}

	if err := planctl.Create(s.deps.DB.WithContext(c.UserContext()), p); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(view(p))
}

// Show returns one plan.
func (s *Service) Show(c *fiber.Ctx) error {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return err
	}

	p, err := planctl.Get(s.deps.DB.WithContext(c.UserContext()), uint(id))
	if err != nil {
		return err
	}

	return c.JSON(view(p))
}

// Update changes a plan.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return err
	}

	in := new(planctl.Input)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	p, err := planctl.Shape(*in)
	if err != nil {
		return err
	}

	p.ID = uint(id)

	db := s.deps.DB.WithContext(c.UserContext())
	if err := planctl.Update(db, p); err != nil {
		return err
	}

	updated, err := planctl.Get(db, p.ID)
	if err != nil {
		return err
	}

	return c.JSON(view(updated))
}

// Delete removes a plan. Plans with past subscriptions are deactivated instead.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := handler.UintParam(c, "id")
	if err != nil {
		return err
	}

	if err := planctl.Delete(s.deps.DB.WithContext(c.UserContext()), uint(id)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
