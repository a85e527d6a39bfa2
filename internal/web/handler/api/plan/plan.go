// Package plan lists the sellable plans and manages the subscription of the signed in user.
package plan

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/internal/auth"
	planctl "github.com/cardforge/cardforge/internal/db/controller/plan"
	"github.com/cardforge/cardforge/internal/web/handler"
)

const (
	// Path lists the active plans.
	Path = handler.APIPath + "/plans"
	// SubscriptionPath is the subscription of the signed in user.
	SubscriptionPath = handler.APIPath + "/subscription"
)

// Service is the plan handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the plan handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.Subscriptions == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.List)
		router.Get("/:slug", s.Show)
	})

	app.Route(SubscriptionPath, func(router fiber.Router) {
		router.Use(auth.RequireUser())
		router.Get(handler.RouterRootPath, s.Subscription)
		router.Delete(handler.RouterRootPath, s.Cancel)
	})

	return nil
}

// List returns the active plans.
func (s *Service) List(c *fiber.Ctx) error {
	plans, err := planctl.List(s.deps.DB.WithContext(c.UserContext()), true)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"items": plans})
}

// Show returns an active plan by slug.
func (s *Service) Show(c *fiber.Ctx) error {
	found, err := planctl.GetBySlug(s.deps.DB.WithContext(c.UserContext()), c.Params("slug"))
	if err != nil {
		return err
	}

	if !found.IsActive {
		return planctl.ErrPlanNotFound
	}

	return c.JSON(found)
}

// Subscription returns the running subscription and the plan the limits come from.
func (s *Service) Subscription(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := handler.User(c)

	sub, err := s.deps.Subscriptions.Active(ctx, user.ID)
	if err != nil {
		return err
	}

	current, err := s.deps.Subscriptions.Plan(ctx, user.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"subscription": sub, "plan": current})
}

// Cancel ends the running subscription, the user falls back to the default plan.
func (s *Service) Cancel(c *fiber.Ctx) error {
	if err := s.deps.Subscriptions.Cancel(c.UserContext(), handler.User(c).ID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
