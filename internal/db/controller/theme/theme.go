// Package theme provides database operations for card themes.
package theme

import (
	"errors"

	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/db/models"
)

var (
	// ErrThemeNotFound is returned when a theme is not found.
	ErrThemeNotFound = errors.New("theme not found")
	// ErrSystemThemeLocked is returned when changing a theme shipped by the platform.
	ErrSystemThemeLocked = errors.New("system default themes cannot be modified")
	// ErrDefaultThemeLocked is returned when deleting the default theme.
	ErrDefaultThemeLocked = errors.New("the default theme cannot be deleted")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Visible returns the themes a user may pick: public, system default and own themes.
func Visible(db *gorm.DB, userID uint64) ([]models.Theme, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	themes := []models.Theme{}

	err := db.Where("is_public = ? OR is_system_default = ? OR user_id = ?", true, true, userID).
		Order("is_default DESC, name").
		Find(&themes).Error
	if err != nil {
		return nil, err
	}

	return themes, nil
}

// All returns every theme, including soft deleted ones when withTrashed is set.
func All(db *gorm.DB, withTrashed bool) ([]models.Theme, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Order("id")
	if withTrashed {
		query = query.Unscoped()
	}

	themes := []models.Theme{}
	if err := query.Find(&themes).Error; err != nil {
		return nil, err
	}

	return themes, nil
}

func first(query *gorm.DB) (*models.Theme, error) {
	var t models.Theme

	if err := query.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThemeNotFound
		}

		return nil, err
	}

	return &t, nil
}

// Get returns the theme with id.
func Get(db *gorm.DB, id uint) (*models.Theme, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return first(db.Where("id = ?", id))
}

// GetWithTrashed returns the theme with id even when it is soft deleted.
func GetWithTrashed(db *gorm.DB, id uint) (*models.Theme, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return first(db.Unscoped().Where("id = ?", id))
}

// Default returns the theme new cards get, nil without error when none is set.
func Default(db *gorm.DB) (*models.Theme, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	t, err := first(db.Where("is_default = ?", true))
	if errors.Is(err, ErrThemeNotFound) {
		return nil, nil //nolint:nilnil
	}

	return t, err
}

// Create stores t. Creating a default theme unsets the previous default.
func Create(db *gorm.DB, t *models.Theme) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if t.IsDefault {
			if err := unsetDefault(tx, 0); err != nil {
				return err
			}
		}

		return tx.Create(t).Error
	})
}

// Update writes name, visibility and config of t. System default themes are read only.
func Update(db *gorm.DB, t *models.Theme) error {
	if db == nil {
		return ErrDBNil
	}

	current, err := Get(db, t.ID)
	if err != nil {
		return err
	}

	if current.IsSystemDefault {
		return ErrSystemThemeLocked
	}

	return db.Model(current).Select("name", "is_public", "config").Updates(t).Error
}

// SetDefault makes the theme with id the only default one.
func SetDefault(db *gorm.DB, id uint) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		t, err := Get(tx, id)
		if err != nil {
			return err
		}

		if err := unsetDefault(tx, id); err != nil {
			return err
		}

		return tx.Model(t).Update("is_default", true).Error
	})
}

// Delete soft deletes the theme with id. Cards using it fall back to the default theme.
func Delete(db *gorm.DB, id uint) error {
	if db == nil {
		return ErrDBNil
	}

	t, err := Get(db, id)
	if err != nil {
		return err
	}

	switch {
	case t.IsSystemDefault:
		return ErrSystemThemeLocked
	case t.IsDefault:
		return ErrDefaultThemeLocked
	}

	return db.Delete(t).Error
}

// Restore undoes a soft delete.
func Restore(db *gorm.DB, id uint) error {
	if db == nil {
		return ErrDBNil
	}

	t, err := GetWithTrashed(db, id)
	if err != nil {
		return err
	}

	return db.Unscoped().Model(t).Update("deleted_at", nil).Error
}

// ForceDelete removes the theme with id permanently and detaches it from cards.
func ForceDelete(db *gorm.DB, id uint) error {
	if db == nil {
		return ErrDBNil
	}

	t, err := GetWithTrashed(db, id)
	if err != nil {
		return err
	}

	if t.IsSystemDefault {
		return ErrSystemThemeLocked
	}

	if t.IsDefault {
		return ErrDefaultThemeLocked
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Model(&models.Card{}).Where("theme_id = ?", id).Update("theme_id", nil).Error; err != nil {
			return err
		}

		return tx.Unscoped().Delete(t).Error
	})
}

func unsetDefault(tx *gorm.DB, except uint) error {
	return tx.Model(&models.Theme{}).
		Where("is_default = ? AND id <> ?", true, except).
		Update("is_default", false).Error
}
