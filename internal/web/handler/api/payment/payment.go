// Package payment lets users buy plans and receives the provider callbacks.
package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/auth"
	planctl "github.com/cardforge/cardforge/internal/db/controller/plan"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/payment"
	"github.com/cardforge/cardforge/internal/policy"
	"github.com/cardforge/cardforge/internal/web/handler"
)

const (
	// Path is the payment collection of the API.
	Path = handler.APIPath + "/payments"
	// CallbackPath receives the provider redirects, the gateway name is the last segment.
	CallbackPath = "/payments/callback"
)

// ErrPlanNotPurchasable is returned for free or inactive plans.
var ErrPlanNotPurchasable = errors.New("this plan cannot be purchased")

// Checkout is the purchase form.
type Checkout struct {
	PlanID      uint   `json:"planId"      validate:"required"`
	Gateway     string `json:"gateway"     validate:"omitempty,alpha,max=50"`
	SourceToken string `json:"sourceToken" validate:"max=255"`
}

// Service is the payment handler service.
type Service struct {
	deps   *handler.Deps
	policy policy.PaymentPolicy
}

// Handler is the payment handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.Payments == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(CallbackPath, func(router fiber.Router) {
		router.Get("/:gateway", s.Callback)
		router.Post("/:gateway", s.Callback)
	})

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequireUser())
		router.Get(handler.RouterRootPath, s.List)
		router.Post(handler.RouterRootPath, auth.RequirePermission(deps.Auth, auth.PermPaymentsCreate), s.Create)
		router.Get("/:id", s.Show)
		router.Get("/:id/status", s.Status)
	})

	return nil
}

// List returns the payments of the signed in user.
func (s *Service) List(c *fiber.Ctx) error {
	user := handler.User(c)
	if err := policy.Authorize[models.Payment](s.policy, user, policy.ViewAny, nil); err != nil {
		return err
	}

	page, size := handler.Pagination(c)

	items, total, err := s.deps.Payments.Ledger().ListByUser(c.UserContext(), user.ID, page, size)
	if err != nil {
		return err
	}

	return c.JSON(handler.NewPage(items, total, page, size))
}

// Create buys a plan: the payment is stored and handed to the gateway right away.
func (s *Service) Create(c *fiber.Ctx) error {
	user := handler.User(c)
	if err := policy.Authorize[models.Payment](s.policy, user, policy.Create, nil); err != nil {
		return err
	}

	in := new(Checkout)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	ctx := c.UserContext()

	plan, err := planctl.Get(s.deps.DB.WithContext(ctx), in.PlanID)
	if err != nil {
		return err
	}

	if !plan.IsActive || plan.PriceMinor <= 0 {
		return fiber.NewError(fiber.StatusUnprocessableEntity, ErrPlanNotPurchasable.Error())
	}

	var gw payment.Gateway
	if in.Gateway == "" {
		gw, err = s.deps.Payments.Active()
	} else {
		gw, err = s.deps.Payments.Gateway(strings.ToLower(in.Gateway))
	}

	if err != nil {
		return err
	}

	p, err := gw.CreatePayment(ctx, user, plan.PriceMinor, payment.CreateData{
		Currency:    plan.Currency,
		Description: plan.Name,
		SourceToken: in.SourceToken,
		CallbackURL: s.callbackURL(gw.GetGatewayName()),
		Metadata:    map[string]any{payment.MetaPlanID: strconv.FormatUint(uint64(plan.ID), 10)},
	})
	if err != nil {
		return err
	}

	ok, err := gw.ProcessPayment(ctx, p)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment":     p,
		"success":     ok,
		"redirectUrl": p.MetadataString(payment.MetaRedirectURL),
	})
}

// Show returns one payment.
func (s *Service) Show(c *fiber.Ctx) error {
	p, err := s.find(c)
	if err != nil {
		return err
	}

	return c.JSON(p)
}

// Status asks the provider for the status of a payment.
func (s *Service) Status(c *fiber.Ctx) error {
	p, err := s.find(c)
	if err != nil {
		return err
	}

	gw, err := s.deps.Payments.For(p)
	if err != nil {
		return err
	}

	remote, err := gw.GetPaymentStatus(c.UserContext(), p)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"id": p.UUID, "status": p.Status, "gatewayStatus": remote})
}

// Callback confirms a payment after the provider sent the user back.
func (s *Service) Callback(c *fiber.Ctx) error {
	ctx := c.UserContext()
	name := c.Params("gateway")

	gw, err := s.deps.Payments.Gateway(name)
	if err != nil {
		return err
	}

	reference := firstNonEmpty(c.Query("id"), c.Query("payment_intent"), c.FormValue("id"))
	paymentID := c.Query(payment.ProviderPaymentKey)

	if reference == "" && paymentID == "" {
		return payment.ErrMissingReference
	}

	p, err := s.callbackPayment(ctx, name, reference, paymentID)
	if err != nil {
		return err
	}

	ok, err := gw.ConfirmPayment(ctx, p, map[string]string{"id": reference})
	if err != nil {
		log.Warn().Err(err).Str("payment", p.UUID).Str("gateway", name).Msg("payment callback failed")

		return err
	}

	if handler.WantsJSON(c) {
		return c.JSON(fiber.Map{"payment": p, "success": ok})
	}

	return c.Redirect(s.deps.Cfg.Webserver.URL+"/billing?payment="+p.UUID+"&status="+string(p.Status), fiber.StatusSeeOther)
}

// callbackPayment resolves the payment of a callback. The payment id lets a payment whose charge
// response was lost be found before it has a reference.
func (s *Service) callbackPayment(ctx context.Context, gateway, reference, paymentID string) (*models.Payment, error) {
	ledger := s.deps.Payments.Ledger()

	if paymentID == "" {
		return ledger.FindByReference(ctx, gateway, reference)
	}

	p, err := ledger.FindByUUID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if p.Gateway != gateway {
		return nil, payment.ErrPaymentNotFound
	}

	if reference != "" && p.GatewayReference != "" && p.GatewayReference != reference {
		return nil, payment.ErrReferenceMismatch
	}

	return p, nil
}

func (s *Service) find(c *fiber.Ctx) (*models.Payment, error) {
	p, err := s.deps.Payments.Ledger().FindByUUID(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize[models.Payment](s.policy, handler.User(c), policy.View, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) callbackURL(gateway string) string {
	return strings.TrimSuffix(s.deps.Cfg.Webserver.URL, "/") + CallbackPath + "/" + gateway
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
