// Package payment implements the payment lifecycle on top of provider drivers.
//
// A payment moves forward only: pending, processing, confirmed, refunded, with failed reachable
// from pending and processing. Every status change is a conditional UPDATE on the current status,
// concurrent callbacks therefore cannot confirm or refund twice.
package payment

import (
	"context"
	"net/url"

	"github.com/cardforge/cardforge/internal/db/models"
)

// Metadata keys used on payments.
const (
	MetaPlanID      = "plan_id"
	MetaSource      = "source_token"
	MetaCallbackURL = "callback_url"
	MetaRedirectURL = "redirect_url"
)

// ProviderPaymentKey is the provider metadata key carrying the payment UUID, and the query
// parameter of the callback URL carrying it back.
const ProviderPaymentKey = "payment_id"

// Gateway is the contract the application uses for one payment provider.
type Gateway interface {
	// CreatePayment stores a new pending payment for user.
	CreatePayment(ctx context.Context, user *models.User, amount int64, data CreateData) (*models.Payment, error)
	// ProcessPayment starts the charge at the provider.
	ProcessPayment(ctx context.Context, p *models.Payment) (bool, error)
	// ConfirmPayment finalizes a payment after the provider callback. Confirming twice is a no-op.
	ConfirmPayment(ctx context.Context, p *models.Payment, data map[string]string) (bool, error)
	// RefundPayment refunds amount, or everything left when amount is nil.
	RefundPayment(ctx context.Context, p *models.Payment, amount *int64) (bool, error)
	// GetPaymentStatus asks the provider for the current status.
	GetPaymentStatus(ctx context.Context, p *models.Payment) (string, error)
	SupportsRecurring() bool
	GetGatewayName() string
}

// CreateData carries the optional fields of a new payment.
type CreateData struct {
	Currency    string
	Description string
	SourceToken string
	CallbackURL string
	Metadata    map[string]any
}

// Charge is the provider view of a payment, with the status already mapped.
type Charge struct {
	Reference   string
	PaymentID   string
	Status      models.PaymentStatus
	Amount      int64
	Captured    int64
	Refunded    int64
	Currency    string
	RedirectURL string
	Message     string
	Raw         string
}

// Driver talks to one provider API.
type Driver interface {
	Name() string
	Charge(ctx context.Context, p *models.Payment) (*Charge, error)
	Fetch(ctx context.Context, reference string) (*Charge, error)
	// Lookup finds the charge created for the payment UUID, ErrPaymentNotFound if there is none.
	Lookup(ctx context.Context, paymentID string) (*Charge, error)
	Refund(ctx context.Context, reference string, amount int64) error
	Recurring() bool
}

// CallbackURL returns the callback URL stored on p with the payment UUID added, empty without one.
func CallbackURL(p *models.Payment) string {
	raw := p.MetadataString(MetaCallbackURL)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	q.Set(ProviderPaymentKey, p.UUID)
	u.RawQuery = q.Encode()

	return u.String()
}
