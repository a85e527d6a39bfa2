package models

import (
	"time"

	"gorm.io/datatypes"
)

// Billing intervals of a plan.
const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// Subscription states.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// SubscriptionPlan describes a sellable plan. A limit of 0 means unlimited.
type SubscriptionPlan struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Name        string                      `gorm:"size:100;not null" json:"name"`
	Slug        string                      `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Description string                      `gorm:"size:255" json:"description"`
	PriceMinor  int64                       `gorm:"not null;default:0" json:"priceMinor"`
	Currency    string                      `gorm:"size:3;not null" json:"currency"`
	Interval    string                      `gorm:"size:10;not null;default:'month'" json:"interval"`
	MaxCards    int                         `gorm:"not null;default:0" json:"maxCards"`
	MaxThemes   int                         `gorm:"not null;default:0" json:"maxThemes"`
	Features    datatypes.JSONSlice[string] `json:"features"`
	IsActive    bool                        `gorm:"not null;default:true" json:"isActive"`
	IsDefault   bool                        `gorm:"not null;default:false" json:"isDefault"`
	SortOrder   int                         `gorm:"not null;default:0" json:"sortOrder"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}

// Period returns the length of one billing period.
func (p *SubscriptionPlan) Period() time.Duration {
	if p.Interval == IntervalYear {
		return 365 * 24 * time.Hour
	}

	return 30 * 24 * time.Hour
}

// Subscription binds a user to a plan for a period.
type Subscription struct {
	ID        uint64           `gorm:"primaryKey" json:"id"`
	UserID    uint64           `gorm:"index;not null" json:"userId"`
	PlanID    uint             `gorm:"index;not null" json:"planId"`
	Plan      SubscriptionPlan `gorm:"constraint:OnDelete:RESTRICT" json:"plan"`
	Status    string           `gorm:"size:20;index;not null" json:"status"`
	PaymentID *uint64          `json:"-"`
	StartsAt  time.Time        `json:"startsAt"`
	EndsAt    *time.Time       `json:"endsAt"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
