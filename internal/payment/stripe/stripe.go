// Package stripe is the payment driver for Stripe PaymentIntents.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/logger/adapter/stdlogger"
	"github.com/cardforge/cardforge/internal/payment"
)

// Name is the registry name of the driver.
const Name = "stripe"

// Config of a driver. BaseURL is only set to point the driver at a test server.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Driver implements payment.Driver.
type Driver struct {
	api *client.API
}

// New returns a driver. Network retries of the SDK are disabled, callers reconcile instead.
func New(cfg Config) (*Driver, error) {
	if cfg.SecretKey == "" {
		return nil, payment.ErrMissingCredentials
	}

	backendCfg := &stripeapi.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		LeveledLogger:     stdlogger.NewComponent("payment.stripe"),
		MaxNetworkRetries: stripeapi.Int64(0),
	}

	if cfg.BaseURL != "" {
		backendCfg.URL = stripeapi.String(strings.TrimRight(cfg.BaseURL, "/"))
	}

	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg)

	return &Driver{
		api: client.New(cfg.SecretKey, &stripeapi.Backends{API: backend, Connect: backend, Uploads: backend}),
	}, nil
}

// Name implements payment.Driver.
func (d *Driver) Name() string { return Name }

// Recurring implements payment.Driver.
func (d *Driver) Recurring() bool { return true }

// Charge implements payment.Driver. The source token is a PaymentMethod id.
func (d *Driver) Charge(ctx context.Context, p *models.Payment) (*payment.Charge, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:        stripeapi.Int64(p.Amount),
		Currency:      stripeapi.String(strings.ToLower(p.Currency)),
		Description:   stripeapi.String(p.Description),
		PaymentMethod: stripeapi.String(p.MetadataString(payment.MetaSource)),
		Confirm:       stripeapi.Bool(true),
	}

	if cb := payment.CallbackURL(p); cb != "" {
		params.ReturnURL = stripeapi.String(cb)
	} else {
		params.AutomaticPaymentMethods = &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripeapi.Bool(true),
			AllowRedirects: stripeapi.String("never"),
		}
	}

	params.AddMetadata(payment.ProviderPaymentKey, p.UUID)
	params.SetIdempotencyKey("charge-" + p.UUID)
	params.Context = ctx

	pi, err := d.api.PaymentIntents.New(params)
	if err != nil {
		var serr *stripeapi.Error
		if errors.As(err, &serr) && serr.Type == stripeapi.ErrorTypeCard {
			charge := &payment.Charge{Status: models.PaymentFailed, Message: serr.Msg, Raw: string(serr.Code)}
			if serr.PaymentIntent != nil {
				charge.Reference = serr.PaymentIntent.ID
				charge.PaymentID = serr.PaymentIntent.Metadata[payment.ProviderPaymentKey]
			}

			return charge, nil
		}

		return nil, err
	}

	return toCharge(pi), nil
}

// Fetch implements payment.Driver.
func (d *Driver) Fetch(ctx context.Context, reference string) (*payment.Charge, error) {
	if reference == "" {
		return nil, payment.ErrMissingReference
	}

	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx

	pi, err := d.api.PaymentIntents.Get(reference, params)
	if err != nil {
		return nil, err
	}

	return toCharge(pi), nil
}

// Lookup implements payment.Driver through the PaymentIntent search API.
func (d *Driver) Lookup(ctx context.Context, paymentID string) (*payment.Charge, error) {
	params := &stripeapi.PaymentIntentSearchParams{}
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", payment.ProviderPaymentKey, paymentID)
	params.Context = ctx

	iter := d.api.PaymentIntents.Search(params)
	for iter.Next() {
		if pi := iter.PaymentIntent(); pi.Metadata[payment.ProviderPaymentKey] == paymentID {
			return toCharge(pi), nil
		}
	}

	if err := iter.Err(); err != nil {
		return nil, err
	}

	return nil, payment.ErrPaymentNotFound
}

// Refund implements payment.Driver.
func (d *Driver) Refund(ctx context.Context, reference string, amount int64) error {
	if reference == "" {
		return payment.ErrMissingReference
	}

	params := &stripeapi.RefundParams{
		PaymentIntent: stripeapi.String(reference),
		Amount:        stripeapi.Int64(amount),
	}
	params.Context = ctx

	_, err := d.api.Refunds.New(params)

	return err
}

func status(pi *stripeapi.PaymentIntent) models.PaymentStatus {
	switch pi.Status {
	case stripeapi.PaymentIntentStatusSucceeded:
		return models.PaymentConfirmed
	case stripeapi.PaymentIntentStatusCanceled:
		return models.PaymentFailed
	case stripeapi.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return models.PaymentFailed
		}
	}

	return models.PaymentProcessing
}

func toCharge(pi *stripeapi.PaymentIntent) *payment.Charge {
	charge := &payment.Charge{
		Reference: pi.ID,
		PaymentID: pi.Metadata[payment.ProviderPaymentKey],
		Status:    status(pi),
		Amount:    pi.Amount,
		Captured:  pi.AmountReceived,
		Currency:  strings.ToUpper(string(pi.Currency)),
		Raw:       string(pi.Status),
	}

	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		charge.RedirectURL = pi.NextAction.RedirectToURL.URL
	}

	if pi.LastPaymentError != nil {
		charge.Message = pi.LastPaymentError.Msg
	}

	return charge
}
