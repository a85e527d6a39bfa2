// Package plan provides database operations for subscription plans.
package plan

import (
	"errors"
	"math"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/slug"
)

var (
	// ErrPlanNotFound is returned when a plan is not found.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrPlanInUse is returned when deleting a plan that still has active subscriptions.
	ErrPlanInUse = errors.New("plan has active subscriptions")
	// ErrSlugTaken is returned when another plan uses the slug.
	ErrSlugTaken = errors.New("plan slug is taken")
	// ErrEmptySlug is returned when neither slug nor name yield a usable slug.
	ErrEmptySlug = errors.New("plan slug cannot be empty")
	// ErrNegativePrice is returned for prices below zero.
	ErrNegativePrice = errors.New("price cannot be negative")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// currencies with a minor unit other than 1/100.
var exponents = map[string]int{ //nolint:gochecknoglobals
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0, "UGX": 0,
}

// Input is a plan as edited on the admin pages. Price is in major units.
type Input struct {
	Name        string   `json:"name"        validate:"required,max=100"`
	Slug        string   `json:"slug"        validate:"max=100"`
	Description string   `json:"description" validate:"max=255"`
	Price       float64  `json:"price"       validate:"min=0"`
	Currency    string   `json:"currency"    validate:"required,len=3,uppercase"`
	Interval    string   `json:"interval"    validate:"omitempty,oneof=month year"`
	MaxCards    int      `json:"maxCards"    validate:"min=0"`
	MaxThemes   int      `json:"maxThemes"   validate:"min=0"`
	Features    []string `json:"features"`
	IsActive    bool     `json:"isActive"`
	IsDefault   bool     `json:"isDefault"`
	SortOrder   int      `json:"sortOrder"`
}

// Exponent returns the number of minor unit digits of currency.
func Exponent(currency string) int {
	if e, ok := exponents[strings.ToUpper(currency)]; ok {
		return e
	}

	return 2
}

// ToMinor converts a major unit amount to minor units, 19.99 SAR becomes 1999.
func ToMinor(amount float64, currency string) int64 {
	return int64(math.Round(amount * math.Pow10(Exponent(currency))))
}

// ToMajor converts a minor unit amount back to major units.
func ToMajor(amount int64, currency string) float64 {
	return float64(amount) / math.Pow10(Exponent(currency))
}

// Features trims the entries, drops empty ones and keeps the first of duplicates.
func Features(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))

	for _, f := range in {
		f = strings.TrimSpace(f)
		if f == "" || seen[strings.ToLower(f)] {
			continue
		}

		seen[strings.ToLower(f)] = true
		out = append(out, f)
	}

	return out
}

// Shape turns admin input into a plan row.
func Shape(in Input) (*models.SubscriptionPlan, error) {
	if in.Price < 0 {
		return nil, ErrNegativePrice
	}

	s := slug.Make(in.Slug)
	if s == "" {
		s = slug.Make(in.Name)
	}

	if s == "" {
		return nil, ErrEmptySlug
	}

	interval := in.Interval
	if interval == "" {
		interval = models.IntervalMonth
	}

	currency := strings.ToUpper(in.Currency)

	return &models.SubscriptionPlan{
		Name:        strings.TrimSpace(in.Name),
		Slug:        s,
		Description: in.Description,
		PriceMinor:  ToMinor(in.Price, currency),
		Currency:    currency,
		Interval:    interval,
		MaxCards:    in.MaxCards,
		MaxThemes:   in.MaxThemes,
		Features:    datatypes.NewJSONSlice(Features(in.Features)),
		IsActive:    in.IsActive,
		IsDefault:   in.IsDefault,
		SortOrder:   in.SortOrder,
	}, nil
}

func first(query *gorm.DB) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan

	if err := query.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}

		return nil, err
	}

	return &p, nil
}

// List returns plans in display order.
func List(db *gorm.DB, activeOnly bool) ([]models.SubscriptionPlan, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Order("sort_order, price_minor, id")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	plans := []models.SubscriptionPlan{}
	if err := query.Find(&plans).Error; err != nil {
		return nil, err
	}

	return plans, nil
}

// Get returns the plan with id.
func Get(db *gorm.DB, id uint) (*models.SubscriptionPlan, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return first(db.Where("id = ?", id))
}

// GetBySlug returns the plan with slug.
func GetBySlug(db *gorm.DB, s string) (*models.SubscriptionPlan, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return first(db.Where("slug = ?", s))
}

// Create stores p. A new default plan replaces the previous one.
func Create(db *gorm.DB, p *models.SubscriptionPlan) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := checkSlug(tx, p.Slug, 0); err != nil {
			return err
		}

		if p.IsDefault {
			if err := unsetDefault(tx, 0); err != nil {
				return err
			}
		}

		active := p.IsActive
		if err := tx.Create(p).Error; err != nil {
			return err
		}

		// is_active defaults to true in the schema, a zero value is not written by Create
		if !active {
			p.IsActive = false

			return tx.Model(p).Update("is_active", false).Error
		}

		return nil
	})
}

// Update writes all editable fields of p.
func Update(db *gorm.DB, p *models.SubscriptionPlan) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		current, err := Get(tx, p.ID)
		if err != nil {
			return err
		}

		if err := checkSlug(tx, p.Slug, p.ID); err != nil {
			return err
		}

		if p.IsDefault && !current.IsDefault {
			if err := unsetDefault(tx, p.ID); err != nil {
				return err
			}
		}

		return tx.Model(current).
			Select("name", "slug", "description", "price_minor", "currency", "interval", "max_cards",
				"max_themes", "features", "is_active", "is_default", "sort_order").
			Updates(p).Error
	})
}

// Delete removes the plan with id unless a subscription on it is still active.
func Delete(db *gorm.DB, id uint) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		p, err := Get(tx, id)
		if err != nil {
			return err
		}

		var active int64

		err = tx.Model(&models.Subscription{}).
			Where("plan_id = ? AND status = ?", id, models.SubscriptionActive).
			Count(&active).Error
		if err != nil {
			return err
		}

		if active > 0 {
			return ErrPlanInUse
		}

		var history int64
		if err := tx.Model(&models.Subscription{}).Where("plan_id = ?", id).Count(&history).Error; err != nil {
			return err
		}

		// past subscriptions still reference the plan, keep the row and hide it
		if history > 0 {
			return tx.Model(p).Updates(map[string]any{"is_active": false, "is_default": false}).Error
		}

		return tx.Delete(p).Error
	})
}

func checkSlug(tx *gorm.DB, s string, self uint) error {
	if s == "" {
		return ErrEmptySlug
	}

	var n int64
	if err := tx.Model(&models.SubscriptionPlan{}).Where("slug = ? AND id <> ?", s, self).Count(&n).Error; err != nil {
		return err
	}

	if n > 0 {
		return ErrSlugTaken
	}

	return nil
}

func unsetDefault(tx *gorm.DB, except uint) error {
	return tx.Model(&models.SubscriptionPlan{}).
		Where("is_default = ? AND id <> ?", true, except).
		Update("is_default", false).Error
}
