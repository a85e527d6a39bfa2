package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

// Payment lifecycle states. Transitions only move forward, see PaymentStatus.CanMoveTo.
const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentConfirmed  PaymentStatus = "confirmed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{ //nolint:gochecknoglobals
	PaymentPending:    {PaymentProcessing, PaymentConfirmed, PaymentFailed},
	PaymentProcessing: {PaymentConfirmed, PaymentFailed},
	PaymentConfirmed:  {PaymentRefunded},
}

// CanMoveTo reports whether a payment in status s may move to next.
func (s PaymentStatus) CanMoveTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// Final reports whether no further transition is possible.
func (s PaymentStatus) Final() bool {
	return len(paymentTransitions[s]) == 0
}

// Payment is one payment attempt of a user. Amounts are in the currency's minor unit.
// Rows are never deleted, the gateway integration only moves Status forward.
type Payment struct {
	ID               uint64            `gorm:"primaryKey" json:"-"`
	UUID             string            `gorm:"size:36;uniqueIndex;not null" json:"id"`
	UserID           uint64            `gorm:"index;not null" json:"userId"`
	User             User              `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"-"`
	Gateway          string            `gorm:"size:50;not null" json:"gateway"`
	GatewayReference string            `gorm:"size:191;index" json:"gatewayReference"`
	Amount           int64             `gorm:"not null" json:"amount"`
	Currency         string            `gorm:"size:3;not null" json:"currency"`
	Status           PaymentStatus     `gorm:"size:20;index;not null" json:"status"`
	CapturedAmount   int64             `gorm:"not null;default:0" json:"capturedAmount"`
	RefundedAmount   int64             `gorm:"not null;default:0" json:"refundedAmount"`
	Description      string            `gorm:"size:255" json:"description"`
	FailureReason    string            `gorm:"size:255" json:"failureReason,omitempty"`
	Metadata         datatypes.JSONMap `json:"metadata"`
	ConfirmedAt      *time.Time        `json:"confirmedAt"`
	FulfilledAt      *time.Time        `json:"fulfilledAt"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// RefundableAmount is what is left to refund.
func (p *Payment) RefundableAmount() int64 {
	return p.CapturedAmount - p.RefundedAmount
}

// MetadataString returns a metadata value as string, empty if missing or not a string.
func (p *Payment) MetadataString(key string) string {
	if p.Metadata == nil {
		return ""
	}

	v, _ := p.Metadata[key].(string)

	return v
}
