// Package payment provides the admin pages of the payment ledger.
package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/payment"
	"github.com/cardforge/cardforge/internal/web/handler"
)

// Path is the base path of the payment pages.
const Path = handler.AdminPath + "/payments"

// Refund is the refund form. Without amount the rest of the captured amount is refunded.
type Refund struct {
	Amount *int64 `json:"amount" validate:"omitempty,gt=0"`
}

// Service is the payment handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the payment handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.Payments == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequirePermission(deps.Auth, auth.PermAdminPayments))
		router.Get(handler.RouterRootPath, s.List)
		router.Get("/:id", s.Show)
		router.Post("/:id/refund", s.Refund)
		router.Post("/:id/reconcile", s.Reconcile)
	})

	return nil
}

// List filters the ledger by user, status and gateway.
func (s *Service) List(c *fiber.Ctx) error {
	f := payment.Filter{
		UserID:  uint64(c.QueryInt("user")),
		Status:  models.PaymentStatus(c.Query("status")),
		Gateway: c.Query("gateway"),
	}

	page, size := handler.Pagination(c)

	items, total, err := s.deps.Payments.Ledger().List(c.UserContext(), f, page, size)
	if err != nil {
		return err
	}

	return c.JSON(handler.NewPage(items, total, page, size))
}

// Show returns one payment.
func (s *Service) Show(c *fiber.Ctx) error {
	p, err := s.deps.Payments.Ledger().FindByUUID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(p)
}

// Refund refunds a confirmed payment through its gateway.
func (s *Service) Refund(c *fiber.Ctx) error {
	in := new(Refund)
	if len(c.Body()) > 0 {
		if err := handler.Bind(c, s.deps.Validator, in); err != nil {
			return err
		}
	}

	ctx := c.UserContext()

	p, err := s.deps.Payments.Ledger().FindByUUID(ctx, c.Params("id"))
	if err != nil {
		return err
	}

	gw, err := s.deps.Payments.For(p)
	if err != nil {
		return err
	}

	ok, err := gw.RefundPayment(ctx, p, in.Amount)
	if err != nil {
		return err
	}

	log.Info().Str("payment", p.UUID).Uint64("by", handler.User(c).ID).Bool("refunded", ok).Msg("refund requested")

	return c.JSON(fiber.Map{"payment": p, "success": ok})
}

// Reconcile pulls the provider status of a payment.
func (s *Service) Reconcile(c *fiber.Ctx) error {
	ctx := c.UserContext()

	p, err := s.deps.Payments.Ledger().FindByUUID(ctx, c.Params("id"))
	if err != nil {
		return err
	}

	p, err = s.deps.Payments.Reconcile(ctx, p)
	if err != nil {
		return err
	}

	return c.JSON(p)
}
