// Package subscription resolves the plan of a user and enforces its limits.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/db/models"
)

// Limited features.
const (
	FeatureCards  = "cards"
	FeatureThemes = "themes"
)

var (
	// ErrUnknownFeature is returned for a feature without a limit column.
	ErrUnknownFeature = errors.New("unknown plan feature")
	// ErrPlanNotFound is returned when activating a plan that does not exist or is inactive.
	ErrPlanNotFound = errors.New("subscription plan not found")
	// ErrNoSubscription is returned by Cancel when the user has no active subscription.
	ErrNoSubscription = errors.New("no active subscription")
)

// LimitExceededError is returned when the plan of a user does not allow one more of Feature.
type LimitExceededError struct {
	Feature string
	Limit   int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("your plan allows %d %s, upgrade to add more", e.Limit, e.Feature)
}

// Checker resolves plans and counts usage.
type Checker struct {
	db  *gorm.DB
	now func() time.Time
}

// NewChecker returns a checker on db.
func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db, now: time.Now}
}

// Active returns the running subscription of the user, nil if there is none.
func (c *Checker) Active(ctx context.Context, userID uint64) (*models.Subscription, error) {
	var sub models.Subscription

	err := c.db.WithContext(ctx).Preload("Plan").
		Where("user_id = ? AND status = ? AND (ends_at IS NULL OR ends_at > ?)", userID, models.SubscriptionActive, c.now().UTC()).
		Order("id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &sub, nil
}

// Plan returns the plan the user is on: the plan of the active subscription or the default plan.
// Without either it returns nil, meaning no limits apply.
func (c *Checker) Plan(ctx context.Context, userID uint64) (*models.SubscriptionPlan, error) {
	sub, err := c.Active(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sub != nil {
		return &sub.Plan, nil
	}

	var plan models.SubscriptionPlan

	err = c.db.WithContext(ctx).Where("is_default = ?", true).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &plan, nil
}

// Ensure returns a *LimitExceededError if the user may not create one more of feature.
func (c *Checker) Ensure(ctx context.Context, user *models.User, feature string) error {
	plan, err := c.Plan(ctx, user.ID)
	if err != nil {
		return err
	}

	var (
		limit int
		model any
	)

	switch feature {
	case FeatureCards:
		model = &models.Card{}
		if plan != nil {
			limit = plan.MaxCards
		}
	case FeatureThemes:
		model = &models.Theme{}
		if plan != nil {
			limit = plan.MaxThemes
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	if limit == 0 {
		return nil
	}

	var used int64
	if err := c.db.WithContext(ctx).Model(model).Where("user_id = ?", user.ID).Count(&used).Error; err != nil {
		return err
	}

	if used >= int64(limit) {
		return &LimitExceededError{Feature: feature, Limit: limit}
	}

	return nil
}

// Activate puts the user on plan planID, bought with payment paymentID. Running subscriptions are
// cancelled. Activating the same payment twice is a no-op.
func (c *Checker) Activate(ctx context.Context, userID uint64, planID uint, paymentID uint64) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seen int64
		if err := tx.Model(&models.Subscription{}).Where("payment_id = ?", paymentID).Count(&seen).Error; err != nil {
			return err
		}

		if seen > 0 {
			return nil
		}

		var plan models.SubscriptionPlan
		if err := tx.Where("id = ? AND is_active = ?", planID, true).First(&plan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlanNotFound
			}

			return err
		}

		now := c.now().UTC()

		err := tx.Model(&models.Subscription{}).
			Where("user_id = ? AND status = ?", userID, models.SubscriptionActive).
			Updates(map[string]any{"status": models.SubscriptionCancelled, "ends_at": now}).Error
		if err != nil {
			return err
		}

		ends := now.Add(plan.Period())
		sub := models.Subscription{
			UserID:    userID,
			PlanID:    plan.ID,
			Status:    models.SubscriptionActive,
			PaymentID: &paymentID,
			StartsAt:  now,
			EndsAt:    &ends,
		}

		if err := tx.Create(&sub).Error; err != nil {
			return err
		}

		log.Info().Uint64("user", userID).Str("plan", plan.Slug).Msg("subscription activated")

		return nil
	})
}

// Cancel ends the active subscription of the user now.
func (c *Checker) Cancel(ctx context.Context, userID uint64) error {
	res := c.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND status = ?", userID, models.SubscriptionActive).
		Updates(map[string]any{"status": models.SubscriptionCancelled, "ends_at": c.now().UTC()})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrNoSubscription
	}

	return nil
}
