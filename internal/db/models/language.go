package models

import "time"

// Text directions of a language.
const (
	DirectionLTR = "ltr"
	DirectionRTL = "rtl"
)

// Language is a locale the platform offers. Exactly one language is the default.
type Language struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Code       string    `gorm:"size:16;uniqueIndex;not null" json:"code"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	NativeName string    `gorm:"size:100" json:"nativeName"`
	Direction  string    `gorm:"size:3;not null;default:'ltr'" json:"direction"`
	IsActive   bool      `gorm:"not null;default:true" json:"isActive"`
	IsDefault  bool      `gorm:"not null;default:false;index" json:"isDefault"`
	SortOrder  int       `gorm:"not null;default:0" json:"sortOrder"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
