package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ThemeConfig is the visual configuration blob of a theme.
type ThemeConfig struct {
	PrimaryColor    string `json:"primaryColor"    validate:"omitempty,hexcolor"`
	SecondaryColor  string `json:"secondaryColor"  validate:"omitempty,hexcolor"`
	BackgroundColor string `json:"backgroundColor" validate:"omitempty,hexcolor"`
	TextColor       string `json:"textColor"       validate:"omitempty,hexcolor"`
	FontFamily      string `json:"fontFamily"      validate:"max=80"`
	Layout          string `json:"layout"          validate:"omitempty,oneof=classic centered split"`
}

// Theme styles cards. Themes without owner are shipped by the platform.
type Theme struct {
	ID              uint                           `gorm:"primaryKey" json:"id"`
	UserID          *uint64                        `gorm:"index" json:"userId"`
	Name            string                         `gorm:"size:100;not null" json:"name"`
	IsPublic        bool                           `gorm:"not null;default:false" json:"isPublic"`
	IsSystemDefault bool                           `gorm:"not null;default:false" json:"isSystemDefault"`
	IsDefault       bool                           `gorm:"not null;default:false;index" json:"isDefault"`
	Config          datatypes.JSONType[ThemeConfig] `json:"config"`
	CreatedAt       time.Time                      `json:"createdAt"`
	UpdatedAt       time.Time                      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt                 `gorm:"index" json:"-"`
}

// OwnedBy reports whether the theme belongs to the given user.
func (t *Theme) OwnedBy(userID uint64) bool {
	return t.UserID != nil && *t.UserID == userID
}
