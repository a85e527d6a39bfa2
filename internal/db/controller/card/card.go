// Package card provides database operations for business cards.
package card

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/slug"
	"github.com/cardforge/cardforge/internal/uniuri"
)

const (
	fallbackSlug = "card"
	slugAttempts = 5
	uuidQuery    = "uuid = ?"
)

var (
	// ErrCardNotFound is returned when a card is not found.
	ErrCardNotFound = errors.New("card not found")
	// ErrSlugTaken is returned when no free slug could be found.
	ErrSlugTaken = errors.New("card slug is taken")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

func first(query *gorm.DB) (*models.Card, error) {
	var c models.Card

	if err := query.First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}

		return nil, err
	}

	return &c, nil
}

// Get returns the card with the public id.
func Get(db *gorm.DB, id string) (*models.Card, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return first(db.Preload("Theme").Where(uuidQuery, id))
}

// GetWithTrashed returns the card with the public id even when it is soft deleted.
func GetWithTrashed(db *gorm.DB, id string) (*models.Card, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return first(db.Unscoped().Where(uuidQuery, id))
}

// GetPublishedBySlug returns a published card and counts the view.
func GetPublishedBySlug(db *gorm.DB, s string) (*models.Card, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	res := db.Model(&models.Card{}).
		Where("slug = ? AND published = ?", s, true).
		UpdateColumn("views", gorm.Expr("views + 1"))
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		return nil, ErrCardNotFound
	}

	return first(db.Preload("Theme").Where("slug = ?", s))
}

// ListByUser returns the cards of a user, newest first.
func ListByUser(db *gorm.DB, userID uint64, withTrashed bool) ([]models.Card, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if withTrashed {
		query = query.Unscoped()
	}

	cards := []models.Card{}
	if err := query.Find(&cards).Error; err != nil {
		return nil, err
	}

	return cards, nil
}

// Count returns the number of cards a user holds, soft deleted ones excluded.
func Count(db *gorm.DB, userID uint64) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	var n int64
	err := db.Model(&models.Card{}).Where("user_id = ?", userID).Count(&n).Error

	return n, err
}

// Create stores c with a new public id. The slug is derived from c.Slug or c.FullName
// and gets a random suffix when it is taken.
func Create(db *gorm.DB, c *models.Card) error {
	if db == nil {
		return ErrDBNil
	}

	c.UUID = uuid.NewString()

	s, err := uniqueSlug(db, c.Slug, c.FullName, 0)
	if err != nil {
		return err
	}

	c.Slug = s

	return db.Create(c).Error
}

// Update writes the editable fields of c.
func Update(db *gorm.DB, c *models.Card) error {
	if db == nil {
		return ErrDBNil
	}

	current, err := Get(db, c.UUID)
	if err != nil {
		return err
	}

	if c.Slug != current.Slug {
		s, err := uniqueSlug(db, c.Slug, c.FullName, current.ID)
		if err != nil {
			return err
		}

		c.Slug = s
	}

	c.ID = current.ID

	return db.Model(current).
		Select("theme_id", "slug", "full_name", "job_title", "company", "bio", "email", "phone",
			"website", "locale", "links", "published").
		Updates(c).Error
}

// Delete soft deletes the card.
func Delete(db *gorm.DB, id string) error {
	if db == nil {
		return ErrDBNil
	}

	c, err := Get(db, id)
	if err != nil {
		return err
	}

	return db.Delete(c).Error
}

// Restore undoes a soft delete.
func Restore(db *gorm.DB, id string) error {
	if db == nil {
		return ErrDBNil
	}

	c, err := GetWithTrashed(db, id)
	if err != nil {
		return err
	}

	return db.Unscoped().Model(c).Update("deleted_at", nil).Error
}

// ForceDelete removes the card permanently.
func ForceDelete(db *gorm.DB, id string) error {
	if db == nil {
		return ErrDBNil
	}

	c, err := GetWithTrashed(db, id)
	if err != nil {
		return err
	}

	return db.Unscoped().Delete(c).Error
}

// uniqueSlug picks a slug for the card with id self (0 for new cards). Soft deleted cards keep
// their slug reserved.
func uniqueSlug(db *gorm.DB, requested, name string, self uint64) (string, error) {
	base := slug.Make(requested)
	if base == "" {
		base = slug.Make(name)
	}

	if base == "" {
		base = fallbackSlug
	}

	candidate := base
	for range slugAttempts {
		taken, err := slugTaken(db, candidate, self)
		if err != nil {
			return "", err
		}

		if !taken {
			return candidate, nil
		}

		candidate = trim(base, slug.MaxLen-7) + "-" + uniuri.NewSlugSuffix()
	}

	return "", fmt.Errorf("%w: %s", ErrSlugTaken, base)
}

func slugTaken(db *gorm.DB, s string, self uint64) (bool, error) {
	var n int64

	err := db.Unscoped().Model(&models.Card{}).Where("slug = ? AND id <> ?", s, self).Count(&n).Error

	return n > 0, err
}

func trim(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
