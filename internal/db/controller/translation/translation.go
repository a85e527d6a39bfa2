// Package translation provides access to the AI translation history.
package translation

import (
	"errors"

	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/db/models"
)

// DefaultPageSize is used when the caller passes no page size.
const DefaultPageSize = 25

var (
	// ErrEntryNotFound is returned when a history entry is not found.
	ErrEntryNotFound = errors.New("translation history entry not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Filter narrows List. Zero fields match everything.
type Filter struct {
	UserID       uint64
	SourceLocale string
	TargetLocale string
	Status       string
}

func (f Filter) apply(query *gorm.DB) *gorm.DB {
	if f.UserID != 0 {
		query = query.Where("user_id = ?", f.UserID)
	}

	if f.SourceLocale != "" {
		query = query.Where("source_locale = ?", f.SourceLocale)
	}

	if f.TargetLocale != "" {
		query = query.Where("target_locale = ?", f.TargetLocale)
	}

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	return query
}

// List returns one page of entries, newest first, and the number of matching entries.
func List(db *gorm.DB, f Filter, page, pageSize int) ([]models.TranslationHistory, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}

	if page < 1 {
		page = 1
	}

	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	var total int64
	if err := f.apply(db.Model(&models.TranslationHistory{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	entries := []models.TranslationHistory{}

	err := f.apply(db.Preload("User")).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// Get returns the entry with id and its user.
func Get(db *gorm.DB, id uint64) (*models.TranslationHistory, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var h models.TranslationHistory

	if err := db.Preload("User").Where("id = ?", id).First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}

		return nil, err
	}

	return &h, nil
}

// Record stores a finished translation.
func Record(db *gorm.DB, h *models.TranslationHistory) error {
	if db == nil {
		return ErrDBNil
	}

	if h.Status == "" {
		h.Status = models.TranslationCompleted
	}

	return db.Create(h).Error
}

// Delete removes the entry with id.
func Delete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	res := db.Delete(&models.TranslationHistory{}, id)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrEntryNotFound
	}

	return nil
}
