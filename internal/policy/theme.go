package policy

import "github.com/cardforge/cardforge/internal/db/models"

// ThemePolicy authorizes theme actions. System default themes cannot be changed by anyone.
type ThemePolicy struct{}

// Allows implements Policy.
func (ThemePolicy) Allows(actor *models.User, action Action, theme *models.Theme) bool {
	switch action {
	case ViewAny:
		return true
	case Create:
		return actor != nil
	case View:
		if theme == nil {
			return false
		}

		return theme.IsPublic || theme.IsSystemDefault || (actor != nil && theme.OwnedBy(actor.ID))
	case Update, Delete, Restore, ForceDelete:
		return theme != nil && actor != nil && !theme.IsSystemDefault && theme.OwnedBy(actor.ID)
	}

	return false
}
