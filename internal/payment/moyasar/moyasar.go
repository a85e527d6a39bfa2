// Package moyasar is the payment driver for the Moyasar gateway.
package moyasar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/logger/adapter/stdlogger"
	"github.com/cardforge/cardforge/internal/payment"
)

// Name is the registry name of the driver.
const Name = "moyasar"

// DefaultBaseURL is the production API.
const DefaultBaseURL = "https://api.moyasar.com/v1"

// Config of a driver.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Driver implements payment.Driver.
type Driver struct {
	client *resty.Client
}

type source struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	Message        string `json:"message,omitempty"`
	TransactionURL string `json:"transaction_url,omitempty"`
}

type createRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Source      source            `json:"source"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paymentResponse struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Captured int64             `json:"captured"`
	Refunded int64             `json:"refunded"`
	Source   source            `json:"source"`
	Metadata map[string]string `json:"metadata"`
}

type listResponse struct {
	Payments []paymentResponse `json:"payments"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// New returns a driver authenticating with the secret key.
func New(cfg Config) (*Driver, error) {
	if cfg.SecretKey == "" {
		return nil, payment.ErrMissingCredentials
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.SecretKey, "").
		SetHeader("Accept", "application/json").
		SetLogger(stdlogger.NewComponent("payment.moyasar"))

	return &Driver{client: client}, nil
}

// Name implements payment.Driver.
func (d *Driver) Name() string { return Name }

// Recurring implements payment.Driver.
func (d *Driver) Recurring() bool { return false }

// Charge implements payment.Driver.
func (d *Driver) Charge(ctx context.Context, p *models.Payment) (*payment.Charge, error) {
	token := p.MetadataString(payment.MetaSource)
	if token == "" {
		return nil, fmt.Errorf("moyasar: payment %s has no source token", p.UUID)
	}

	req := createRequest{
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
		CallbackURL: payment.CallbackURL(p),
		Source:      source{Type: "token", Token: token},
		Metadata:    map[string]string{payment.ProviderPaymentKey: p.UUID},
	}

	var out paymentResponse

	if err := d.do(d.client.R().SetContext(ctx).SetBody(req).SetResult(&out), "POST", "/payments"); err != nil {
		return nil, err
	}

	return toCharge(&out), nil
}

// Fetch implements payment.Driver.
func (d *Driver) Fetch(ctx context.Context, reference string) (*payment.Charge, error) {
	if reference == "" {
		return nil, payment.ErrMissingReference
	}

	var out paymentResponse

	req := d.client.R().SetContext(ctx).SetPathParam("id", reference).SetResult(&out)
	if err := d.do(req, "GET", "/payments/{id}"); err != nil {
		return nil, err
	}

	return toCharge(&out), nil
}

// Lookup implements payment.Driver by filtering the payment list on the metadata written by Charge.
func (d *Driver) Lookup(ctx context.Context, paymentID string) (*payment.Charge, error) {
	var out listResponse

	req := d.client.R().
		SetContext(ctx).
		SetQueryParam("metadata["+payment.ProviderPaymentKey+"]", paymentID).
		SetResult(&out)
	if err := d.do(req, "GET", "/payments"); err != nil {
		return nil, err
	}

	for i := range out.Payments {
		if out.Payments[i].Metadata[payment.ProviderPaymentKey] == paymentID {
			return toCharge(&out.Payments[i]), nil
		}
	}

	return nil, payment.ErrPaymentNotFound
}

// Refund implements payment.Driver.
func (d *Driver) Refund(ctx context.Context, reference string, amount int64) error {
	if reference == "" {
		return payment.ErrMissingReference
	}

	req := d.client.R().
		SetContext(ctx).
		SetPathParam("id", reference).
		SetBody(map[string]int64{"amount": amount})

	return d.do(req, "POST", "/payments/{id}/refund")
}

func (d *Driver) do(req *resty.Request, method, url string) error {
	var apiErr apiError

	resp, err := req.SetError(&apiErr).Execute(method, url)
	if err != nil {
		return err
	}

	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = resp.Status()
		}

		return fmt.Errorf("moyasar %s %s: %d %s", method, url, resp.StatusCode(), msg)
	}

	return nil
}

// status maps the gateway statuses on the payment lifecycle.
func status(s string) models.PaymentStatus {
	switch s {
	case "paid", "captured":
		return models.PaymentConfirmed
	case "failed", "voided":
		return models.PaymentFailed
	case "refunded":
		return models.PaymentRefunded
	default:
		return models.PaymentProcessing
	}
}

func toCharge(r *paymentResponse) *payment.Charge {
	return &payment.Charge{
		Reference:   r.ID,
		PaymentID:   r.Metadata[payment.ProviderPaymentKey],
		Status:      status(r.Status),
		Amount:      r.Amount,
		Captured:    r.Captured,
		Refunded:    r.Refunded,
		Currency:    r.Currency,
		RedirectURL: r.Source.TransactionURL,
		Message:     r.Source.Message,
		Raw:         r.Status,
	}
}
