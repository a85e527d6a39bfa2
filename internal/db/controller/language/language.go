// Package language provides database operations for the languages offered by the platform.
package language

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/db/models"
)

var (
	// ErrLanguageNotFound is returned when a language is not found.
	ErrLanguageNotFound = errors.New("language not found")
	// ErrInvalidCode is returned for codes that are not BCP 47 tags.
	ErrInvalidCode = errors.New("invalid language code")
	// ErrInvalidDirection is returned for a direction other than ltr and rtl.
	ErrInvalidDirection = errors.New("direction must be ltr or rtl")
	// ErrLanguageExists is returned when the code is taken.
	ErrLanguageExists = errors.New("language already exists")
	// ErrDefaultLanguageLocked is returned when deleting or deactivating the default language.
	ErrDefaultLanguageLocked = errors.New("the default language cannot be deleted or deactivated")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

var rtlScripts = map[string]bool{"Arab": true, "Hebr": true, "Thaa": true, "Syrc": true, "Nkoo": true, "Adlm": true}

// Canonicalize parses code as BCP 47 tag and returns its canonical form, "en-us" becomes "en-US".
func Canonicalize(code string) (string, error) {
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}

	return tag.String(), nil
}

// DirectionOf returns the writing direction of the most likely script of code.
func DirectionOf(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return models.DirectionLTR
	}

	script, _ := tag.Script()
	if rtlScripts[script.String()] {
		return models.DirectionRTL
	}

	return models.DirectionLTR
}

func normalize(l *models.Language) error {
	code, err := Canonicalize(l.Code)
	if err != nil {
		return err
	}

	l.Code = code

	switch l.Direction {
	case "":
		l.Direction = DirectionOf(code)
	case models.DirectionLTR, models.DirectionRTL:
	default:
		return ErrInvalidDirection
	}

	return nil
}

// List returns languages ordered for display.
func List(db *gorm.DB, activeOnly bool) ([]models.Language, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Order("sort_order, name")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	languages := []models.Language{}
	if err := query.Find(&languages).Error; err != nil {
		return nil, err
	}

	return languages, nil
}

func first(query *gorm.DB) (*models.Language, error) {
	var l models.Language

	if err := query.First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLanguageNotFound
		}

		return nil, err
	}

	return &l, nil
}

// Get returns the language with id.
func Get(db *gorm.DB, id uint) (*models.Language, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return first(db.Where("id = ?", id))
}

// GetByCode returns the language with the canonical form of code.
func GetByCode(db *gorm.DB, code string) (*models.Language, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	canonical, err := Canonicalize(code)
	if err != nil {
		return nil, err
	}

	return first(db.Where("code = ?", canonical))
}

// Default returns the default language.
func Default(db *gorm.DB) (*models.Language, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return first(db.Where("is_default = ?", true))
}

// Create stores l. A new default language takes over from the previous one.
func Create(db *gorm.DB, l *models.Language) error {
	if db == nil {
		return ErrDBNil
	}

	if err := normalize(l); err != nil {
		return err
	}

	if l.IsDefault {
		l.IsActive = true
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := GetByCode(tx, l.Code); err == nil {
			return ErrLanguageExists
		} else if !errors.Is(err, ErrLanguageNotFound) {
			return err
		}

		if l.IsDefault {
			if err := unsetDefault(tx, 0); err != nil {
				return err
			}
		}

		active := l.IsActive
		if err := tx.Create(l).Error; err != nil {
			return err
		}

		// is_active defaults to true in the schema, a zero value is not written by Create
		if !active {
			l.IsActive = false

			return tx.Model(l).Update("is_active", false).Error
		}

		return nil
	})
}

// Update writes all editable fields of l.
func Update(db *gorm.DB, l *models.Language) error {
	if db == nil {
		return ErrDBNil
	}

	if err := normalize(l); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		current, err := Get(tx, l.ID)
		if err != nil {
			return err
		}

		if current.IsDefault && (!l.IsActive || !l.IsDefault) {
			return ErrDefaultLanguageLocked
		}

		if other, err := GetByCode(tx, l.Code); err == nil && other.ID != l.ID {
			return ErrLanguageExists
		}

		if l.IsDefault {
			l.IsActive = true
		}

		if l.IsDefault && !current.IsDefault {
			if err := unsetDefault(tx, l.ID); err != nil {
				return err
			}
		}

		return tx.Model(current).
			Select("code", "name", "native_name", "direction", "is_active", "is_default", "sort_order").
			Updates(l).Error
	})
}

// SetDefault makes the language with id the only default one and activates it.
func SetDefault(db *gorm.DB, id uint) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		l, err := Get(tx, id)
		if err != nil {
			return err
		}

		if err := unsetDefault(tx, id); err != nil {
			return err
		}

		return tx.Model(l).Updates(map[string]any{"is_default": true, "is_active": true}).Error
	})
}

// Delete removes the language with id unless it is the default one.
func Delete(db *gorm.DB, id uint) error {
	if db == nil {
		return ErrDBNil
	}

	l, err := Get(db, id)
	if err != nil {
		return err
	}

	if l.IsDefault {
		return ErrDefaultLanguageLocked
	}

	return db.Delete(l).Error
}

func unsetDefault(tx *gorm.DB, except uint) error {
	return tx.Model(&models.Language{}).
		Where("is_default = ? AND id <> ?", true, except).
		Update("is_default", false).Error
}
