package models

// All returns every model in migration order.
func All() []any {
	return []any{
		&Role{},
		&Permission{},
		&RolePermission{},
		&User{},
		&Setting{},
		&Language{},
		&Theme{},
		&Card{},
		&SubscriptionPlan{},
		&Subscription{},
		&Payment{},
		&OTP{},
		&TranslationHistory{},
	}
}
