package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/payment/audit"
)

// ConfirmHook fulfills a confirmed payment. It runs until it succeeded once per payment, an error
// leaves the payment to be fulfilled by the next confirm or reconcile.
type ConfirmHook func(ctx context.Context, p *models.Payment) error

// Processor implements Gateway on top of a provider Driver.
type Processor struct {
	driver    Driver
	ledger    *Ledger
	auditor   audit.Auditor
	currency  string
	onConfirm ConfirmHook
}

// NewProcessor returns a Gateway for driver. currency is used for payments created without one.
func NewProcessor(driver Driver, ledger *Ledger, auditor audit.Auditor, currency string, onConfirm ConfirmHook) *Processor {
	if auditor == nil {
		auditor = audit.Nop{}
	}

	return &Processor{
		driver:    driver,
		ledger:    ledger,
		auditor:   auditor,
		currency:  currency,
		onConfirm: onConfirm,
	}
}

// GetGatewayName implements Gateway.
func (g *Processor) GetGatewayName() string { return g.driver.Name() }

// SupportsRecurring implements Gateway.
func (g *Processor) SupportsRecurring() bool { return g.driver.Recurring() }

// CreatePayment implements Gateway.
func (g *Processor) CreatePayment(ctx context.Context, user *models.User, amount int64, data CreateData) (*models.Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	currency := strings.ToUpper(data.Currency)
	if currency == "" {
		currency = g.currency
	}

	meta := copyMeta(data.Metadata)
	if data.SourceToken != "" {
		meta[MetaSource] = data.SourceToken
	}

	if data.CallbackURL != "" {
		meta[MetaCallbackURL] = data.CallbackURL
	}

	p := &models.Payment{
		UserID:      user.ID,
		Gateway:     g.driver.Name(),
		Amount:      amount,
		Currency:    currency,
		Description: data.Description,
		Metadata:    meta,
	}

	if err := g.ledger.Create(ctx, p); err != nil {
		return nil, err
	}

	log.Info().Str("payment", p.UUID).Str("gateway", p.Gateway).Int64("amount", amount).Msg("payment created")

	return p, nil
}

// ProcessPayment implements Gateway. The payment moves to processing before the provider is
// called, a call that fails in transport leaves it there for reconciliation.
func (g *Processor) ProcessPayment(ctx context.Context, p *models.Payment) (bool, error) {
	ok, err := g.ledger.Transition(ctx, p, []models.PaymentStatus{models.PaymentPending}, models.PaymentProcessing, nil)
	if err != nil {
		return false, err
	}

	if !ok {
		return false, fmt.Errorf("%w: payment %s is %s", ErrInvalidTransition, p.UUID, p.Status)
	}

	start := time.Now()
	charge, err := g.driver.Charge(ctx, p)
	g.record(ctx, "process", p, charge, start, err)

	if err != nil {
		log.Error().Err(err).Str("payment", p.UUID).Msg("payment processing failed")

		return false, &GatewayError{Gateway: g.driver.Name(), Op: "process", Err: err}
	}

	meta := map[string]any{}
	if charge.RedirectURL != "" {
		meta[MetaRedirectURL] = charge.RedirectURL
	}

	if err := g.ledger.Attach(ctx, p, charge.Reference, meta); err != nil {
		return false, err
	}

	switch charge.Status {
	case models.PaymentConfirmed:
		return g.confirm(ctx, p, charge)
	case models.PaymentFailed:
		if _, err := g.ledger.Fail(ctx, p, charge.Message); err != nil {
			return false, err
		}

		log.Info().Str("payment", p.UUID).Str("reason", charge.Message).Msg("payment declined")

		return false, nil
	}

	return true, nil
}

// ConfirmPayment implements Gateway. data may carry the provider reference as "id". A payment
// that never got a reference is looked up at the provider by its UUID.
func (g *Processor) ConfirmPayment(ctx context.Context, p *models.Payment, data map[string]string) (bool, error) {
	if err := g.ledger.reload(ctx, p); err != nil {
		return false, err
	}

	if p.Status == models.PaymentConfirmed {
		return true, g.fulfill(ctx, p)
	}

	if p.Status != models.PaymentPending && p.Status != models.PaymentProcessing {
		return false, fmt.Errorf("%w: payment %s is %s", ErrInvalidTransition, p.UUID, p.Status)
	}

	charge, err := g.fetch(ctx, "confirm", p, data["id"])
	if err != nil {
		return false, err
	}

	if charge.Amount != p.Amount || !strings.EqualFold(charge.Currency, p.Currency) {
		log.Warn().Str("payment", p.UUID).Int64("expected", p.Amount).Int64("got", charge.Amount).Msg("provider amount mismatch")

		return false, ErrAmountMismatch
	}

	switch charge.Status {
	case models.PaymentConfirmed:
		return g.confirm(ctx, p, charge)
	case models.PaymentFailed:
		_, err := g.ledger.Fail(ctx, p, charge.Message)

		return false, err
	}

	return false, nil
}

// fetch loads the provider charge of p and attaches its reference when p has none yet.
// hint is a reference reported by the caller, used only while p has no reference.
func (g *Processor) fetch(ctx context.Context, op string, p *models.Payment, hint string) (*Charge, error) {
	reference := p.GatewayReference
	if reference == "" {
		reference = hint
	}

	var (
		charge *Charge
		err    error
	)

	start := time.Now()

	if reference != "" {
		charge, err = g.driver.Fetch(ctx, reference)
	} else {
		charge, err = g.driver.Lookup(ctx, p.UUID)
	}

	g.record(ctx, op, p, charge, start, err)

	if errors.Is(err, ErrPaymentNotFound) {
		return nil, err
	}

	if err != nil {
		return nil, &GatewayError{Gateway: g.driver.Name(), Op: op, Err: err}
	}

	// an unattached payment only adopts a charge that names it
	if charge.PaymentID != p.UUID && (charge.PaymentID != "" || p.GatewayReference == "") {
		log.Warn().Str("payment", p.UUID).Str("charge", charge.Reference).Str("owner", charge.PaymentID).Msg("provider charge of another payment")

		return nil, ErrReferenceMismatch
	}

	if p.GatewayReference == "" && charge.Reference != "" {
		if err := g.ledger.Attach(ctx, p, charge.Reference, nil); err != nil {
			return nil, err
		}
	}

	return charge, nil
}

// confirm applies a confirmed charge. A lost race against another confirmation still reports true.
// ok reports the capture even when the fulfillment fails.
func (g *Processor) confirm(ctx context.Context, p *models.Payment, charge *Charge) (bool, error) {
	captured := charge.Captured
	if captured == 0 {
		captured = charge.Amount
	}

	ok, err := g.ledger.Confirm(ctx, p, charge.Reference, captured)
	if err != nil {
		return false, err
	}

	if !ok {
		return p.Status == models.PaymentConfirmed, nil
	}

	log.Info().Str("payment", p.UUID).Int64("captured", captured).Msg("payment confirmed")

	return true, g.fulfill(ctx, p)
}

// fulfill runs the confirm hook for a confirmed payment that has not been fulfilled yet.
func (g *Processor) fulfill(ctx context.Context, p *models.Payment) error {
	if p.FulfilledAt != nil {
		return nil
	}

	claimed, err := g.ledger.ClaimFulfillment(ctx, p)
	if err != nil || !claimed || g.onConfirm == nil {
		return err
	}

	if herr := g.onConfirm(ctx, p); herr != nil {
		log.Error().Err(herr).Str("payment", p.UUID).Msg("payment confirmed but not fulfilled")

		if err := g.ledger.ReleaseFulfillment(ctx, p); err != nil {
			log.Error().Err(err).Str("payment", p.UUID).Msg("failed to release fulfillment")
		}

		return fmt.Errorf("%w: %w", ErrFulfillmentPending, herr)
	}

	return nil
}

// RefundPayment implements Gateway. The amount is reserved on the payment before the provider
// pays it out, concurrent refunds therefore cannot exceed the captured total.
func (g *Processor) RefundPayment(ctx context.Context, p *models.Payment, amount *int64) (bool, error) {
	if err := g.ledger.reload(ctx, p); err != nil {
		return false, err
	}

	if p.Status != models.PaymentConfirmed || p.RefundableAmount() <= 0 {
		return false, ErrNotRefundable
	}

	value := p.RefundableAmount()
	if amount != nil {
		value = *amount
	}

	if value <= 0 {
		return false, ErrInvalidAmount
	}

	reserved, err := g.ledger.ReserveRefund(ctx, p, value)
	if err != nil {
		return false, err
	}

	if !reserved {
		if p.Status != models.PaymentConfirmed || p.RefundableAmount() <= 0 {
			return false, ErrNotRefundable
		}

		return false, ErrRefundExceedsCaptured
	}

	start := time.Now()
	err = g.driver.Refund(ctx, p.GatewayReference, value)
	g.record(ctx, "refund", p, &Charge{Reference: p.GatewayReference, Amount: value, Currency: p.Currency}, start, err)

	if err != nil {
		if rerr := g.ledger.ReleaseRefund(ctx, p, value); rerr != nil {
			log.Error().Err(rerr).Str("payment", p.UUID).Int64("amount", value).Msg("failed to release refund reservation")
		}

		return false, &GatewayError{Gateway: g.driver.Name(), Op: "refund", Err: err}
	}

	if _, err := g.ledger.CompleteRefund(ctx, p); err != nil {
		return false, err
	}

	log.Info().Str("payment", p.UUID).Int64("amount", value).Str("status", string(p.Status)).Msg("payment refunded")

	return true, nil
}

// GetPaymentStatus implements Gateway. Payments never handed to the provider report their own
// status, so do payments the provider has no charge for.
func (g *Processor) GetPaymentStatus(ctx context.Context, p *models.Payment) (string, error) {
	if p.GatewayReference == "" && p.Status == models.PaymentPending {
		return string(p.Status), nil
	}

	charge, err := g.fetch(ctx, "status", p, "")
	if errors.Is(err, ErrPaymentNotFound) {
		return string(p.Status), nil
	}

	if err != nil {
		return "", err
	}

	return string(charge.Status), nil
}

func (g *Processor) record(ctx context.Context, op string, p *models.Payment, charge *Charge, start time.Time, err error) {
	e := audit.Event{
		Gateway:     g.driver.Name(),
		Op:          op,
		PaymentUUID: p.UUID,
		Reference:   p.GatewayReference,
		Amount:      p.Amount,
		Currency:    p.Currency,
		DurationMs:  time.Since(start).Milliseconds(),
	}

	if charge != nil {
		e.Status = charge.Raw
		if charge.Reference != "" {
			e.Reference = charge.Reference
		}

		if op == "refund" {
			e.Amount = charge.Amount
		}
	}

	if err != nil {
		e.Error = err.Error()
	}

	g.auditor.Record(ctx, e)
}
