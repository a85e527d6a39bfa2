// Package seed fills a fresh database with the data the platform needs to run.
// Every step only adds what is missing, so Run is safe on each start.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/config"
	langctl "github.com/cardforge/cardforge/internal/db/controller/language"
	planctl "github.com/cardforge/cardforge/internal/db/controller/plan"
	themectl "github.com/cardforge/cardforge/internal/db/controller/theme"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/settings"
)

// Run seeds roles, the admin account, languages, the default theme, the free plan and settings.
func Run(ctx context.Context, db *gorm.DB, admin config.Admin) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"rbac", func() error { return RBAC(db) }},
		{"admin", func() error { return Admin(db, admin) }},
		{"languages", func() error { return Languages(db) }},
		{"themes", func() error { return Themes(db) }},
		{"plans", func() error { return Plans(db) }},
		{"settings", func() error { return Settings(ctx, db) }},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("seed %s: %w", step.name, err)
		}
	}

	return nil
}

// RBAC creates the roles and permissions and grants them.
func RBAC(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		perms := make(map[string]uint)

		for _, def := range auth.Permissions() {
			p := models.Permission{Name: def.Name}
			attrs := models.Permission{Resource: def.Resource, Action: def.Action, Description: def.Description}

			if err := tx.Where("name = ?", def.Name).Attrs(attrs).FirstOrCreate(&p).Error; err != nil {
				return err
			}

			perms[def.Name] = p.ID
		}

		for name, granted := range auth.RolePermissions() {
			role := models.Role{Name: name}
			if err := tx.Where("name = ?", name).Attrs(models.Role{IsSystem: true}).FirstOrCreate(&role).Error; err != nil {
				return err
			}

			for _, perm := range granted {
				rp := models.RolePermission{RoleID: role.ID, PermissionID: perms[perm]}
				if err := tx.Where(&rp).FirstOrCreate(&rp).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// Admin creates the admin account unless a user with the admin role exists.
func Admin(db *gorm.DB, admin config.Admin) error {
	var count int64

	err := db.Model(&models.User{}).
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("roles.name = ?", models.RoleAdmin).
		Count(&count).Error
	if err != nil || count > 0 {
		return err
	}

	roleID, err := auth.NewService(db).RoleID(models.RoleAdmin)
	if err != nil {
		return err
	}

	user, err := auth.NewLocalProvider(db).CreateUser(admin.Username, admin.Email, admin.Password, "", "", roleID)
	if errors.Is(err, auth.ErrUserNameOrEmailExists) {
		log.Warn().Str("username", admin.Username).Msg("admin account not seeded, username or email taken")
		return nil
	}

	if err != nil {
		return err
	}

	log.Warn().Str("username", user.Username).Msg("admin account created, change its password")

	return nil
}

// Languages adds English as default and Arabic when no language exists.
func Languages(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Language{}).Count(&count).Error; err != nil || count > 0 {
		return err
	}

	for _, l := range []models.Language{
		{Code: "en", Name: "English", NativeName: "English", IsActive: true, IsDefault: true, SortOrder: 1},
		{Code: "ar", Name: "Arabic", NativeName: "العربية", IsActive: true, SortOrder: 2},
	} {
		if err := langctl.Create(db, &l); err != nil {
			return err
		}
	}

	return nil
}

// Themes adds the system default theme when no theme exists.
func Themes(db *gorm.DB) error {
	var count int64
	if err := db.Unscoped().Model(&models.Theme{}).Count(&count).Error; err != nil || count > 0 {
		return err
	}

	return themectl.Create(db, &models.Theme{
		Name:            "Classic",
		IsPublic:        true,
		IsSystemDefault: true,
		IsDefault:       true,
		Config: datatypes.NewJSONType(models.ThemeConfig{
			PrimaryColor:    "#1f2937",
			SecondaryColor:  "#3b82f6",
			BackgroundColor: "#ffffff",
			TextColor:       "#111827",
			FontFamily:      "Inter",
			Layout:          "classic",
		}),
	})
}

// Plans adds the free default plan when no plan exists.
func Plans(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.SubscriptionPlan{}).Count(&count).Error; err != nil || count > 0 {
		return err
	}

	free, err := planctl.Shape(planctl.Input{
		Name:      "Free",
		Currency:  "SAR",
		MaxCards:  1,
		MaxThemes: 1,
		Features:  []string{"1 card", "1 personal theme"},
		IsActive:  true,
		IsDefault: true,
	})
	if err != nil {
		return err
	}

	return planctl.Create(db, free)
}

// Settings stores the defaults of every group that has no row yet.
func Settings(ctx context.Context, db *gorm.DB) error {
	store := settings.NewStore(db)

	for _, name := range settings.Names() {
		var count int64
		if err := db.Model(&models.Setting{}).Where("group_name = ?", name).Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			continue
		}

		g, err := settings.Defaults(name)
		if err != nil {
			return err
		}

		if err := store.Save(ctx, g); err != nil {
			return err
		}
	}

	return nil
}
