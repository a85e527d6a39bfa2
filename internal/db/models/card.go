package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CardLink is one entry of the link list shown on a card.
type CardLink struct {
	Label string `json:"label" validate:"required,max=60"`
	URL   string `json:"url"   validate:"required,url"`
	Icon  string `json:"icon"  validate:"max=40"`
}

// Card is a digital business card owned by a user.
type Card struct {
	ID        uint64                        `gorm:"primaryKey" json:"-"`
	UUID      string                        `gorm:"size:36;uniqueIndex;not null" json:"id"`
	UserID    uint64                        `gorm:"index;not null" json:"userId"`
	ThemeID   *uint                         `json:"themeId"`
	Theme     *Theme                        `gorm:"constraint:OnDelete:SET NULL" json:"theme,omitempty"`
	Slug      string                        `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	FullName  string                        `gorm:"size:150;not null" json:"fullName"`
	JobTitle  string                        `gorm:"size:150" json:"jobTitle"`
	Company   string                        `gorm:"size:150" json:"company"`
	Bio       string                        `gorm:"type:text" json:"bio"`
	Email     string                        `gorm:"size:255" json:"email"`
	Phone     string                        `gorm:"size:32" json:"phone"`
	Website   string                        `gorm:"size:255" json:"website"`
	Locale    string                        `gorm:"size:16" json:"locale"`
	Links     datatypes.JSONSlice[CardLink] `json:"links"`
	Published bool                          `gorm:"index" json:"published"`
	Views     int64                         `gorm:"not null;default:0" json:"views"`
	CreatedAt time.Time                     `json:"createdAt"`
	UpdatedAt time.Time                     `json:"updatedAt"`
	DeletedAt gorm.DeletedAt                `gorm:"index" json:"deletedAt,omitempty"`
}
