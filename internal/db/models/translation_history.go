package models

import "time"

// Translation outcomes.
const (
	TranslationCompleted = "completed"
	TranslationFailed    = "failed"
)

// TranslationHistory records one AI translation of a card.
type TranslationHistory struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	UserID       uint64    `gorm:"index;not null" json:"userId"`
	User         User      `gorm:"constraint:OnDelete:CASCADE" json:"user"`
	CardID       *uint64   `gorm:"index" json:"cardId"`
	SourceLocale string    `gorm:"size:16;not null" json:"sourceLocale"`
	TargetLocale string    `gorm:"size:16;not null" json:"targetLocale"`
	Provider     string    `gorm:"size:50" json:"provider"`
	Model        string    `gorm:"size:100" json:"model"`
	Characters   int       `gorm:"not null;default:0" json:"characters"`
	Status       string    `gorm:"size:20;index;not null" json:"status"`
	Error        string    `gorm:"size:255" json:"error,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
}

// TableName keeps the singular table name used by the admin pages.
func (TranslationHistory) TableName() string {
	return "translation_history"
}
