package policy

import "github.com/cardforge/cardforge/internal/db/models"

// PaymentPolicy authorizes payment actions. Payments only change through the gateways.
type PaymentPolicy struct{}

// Allows implements Policy.
func (PaymentPolicy) Allows(actor *models.User, action Action, p *models.Payment) bool {
	if actor == nil {
		return false
	}

	switch action {
	case ViewAny, Create:
		return true
	case View:
		return p != nil && (p.UserID == actor.ID || actor.IsAdmin())
	}

	return false
}
