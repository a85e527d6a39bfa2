package policy

import "github.com/cardforge/cardforge/internal/db/models"

// CardPolicy authorizes card actions.
type CardPolicy struct{}

// Allows implements Policy.
func (CardPolicy) Allows(actor *models.User, action Action, card *models.Card) bool {
	switch action {
	case ViewAny, Create:
		return actor != nil
	case View:
		if card == nil {
			return false
		}

		return card.Published || owns(actor, card) || actor.IsAdmin()
	case Update, Delete, Restore:
		return card != nil && (owns(actor, card) || actor.IsAdmin())
	case ForceDelete:
		return card != nil && actor.IsAdmin()
	}

	return false
}

func owns(actor *models.User, card *models.Card) bool {
	return actor != nil && card.UserID == actor.ID
}
