package auth

import "github.com/cardforge/cardforge/internal/db/models"

// Permission constants define the available permissions in the system.
// End-user resources are guarded by policies, the admin pages by these permissions.
const (
	// PermCardsManage allows creating and editing own cards.
	PermCardsManage = "cards.manage"
	// PermThemesManage allows creating and editing own themes.
	PermThemesManage = "themes.manage"
	// PermPaymentsCreate allows paying for a plan.
	PermPaymentsCreate = "payments.create"

	// PermAdminSettings allows managing application-wide settings.
	PermAdminSettings = "admin.settings"
	// PermAdminLanguages allows managing the offered languages.
	PermAdminLanguages = "admin.languages"
	// PermAdminPlans allows managing subscription plans.
	PermAdminPlans = "admin.plans"
	// PermAdminTranslations allows reviewing the translation history.
	PermAdminTranslations = "admin.translations"
	// PermAdminThemes allows managing system themes.
	PermAdminThemes = "admin.themes"
	// PermAdminUsers allows managing user accounts.
	PermAdminUsers = "admin.users"
	// PermAdminPayments allows listing, refunding and reconciling payments.
	PermAdminPayments = "admin.payments"
)

// PermissionDef describes a permission for seeding.
type PermissionDef struct {
	Name        string
	Resource    string
	Action      string
	Description string
}

// Permissions returns all permissions known to the system.
func Permissions() []PermissionDef {
	return []PermissionDef{
		{PermCardsManage, "cards", "manage", "Create and edit own cards"},
		{PermThemesManage, "themes", "manage", "Create and edit own themes"},
		{PermPaymentsCreate, "payments", "create", "Pay for subscription plans"},
		{PermAdminSettings, "admin", "settings", "Manage application settings"},
		{PermAdminLanguages, "admin", "languages", "Manage languages"},
		{PermAdminPlans, "admin", "plans", "Manage subscription plans"},
		{PermAdminTranslations, "admin", "translations", "Review translation history"},
		{PermAdminThemes, "admin", "themes", "Manage system themes"},
		{PermAdminUsers, "admin", "users", "Manage user accounts"},
		{PermAdminPayments, "admin", "payments", "Manage payments"},
	}
}

// RolePermissions maps the seeded roles to their permission names.
func RolePermissions() map[string][]string {
	all := make([]string, 0, len(Permissions()))
	for _, p := range Permissions() {
		all = append(all, p.Name)
	}

	return map[string][]string{
		models.RoleAdmin: all,
		models.RoleUser:  {PermCardsManage, PermThemesManage, PermPaymentsCreate},
	}
}
