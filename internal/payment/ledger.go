package payment

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/db/models"
)

var transitionCounter = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
	Namespace: "cardforge",
	Name:      "payment_transitions_total",
	Help:      "Payment status changes by gateway and target status.",
}, []string{"gateway", "status"})

const maxReasonLen = 255

// Filter narrows payment listings. Zero values match everything.
type Filter struct {
	UserID  uint64
	Status  models.PaymentStatus
	Gateway string
}

// Ledger persists payments. All status changes are conditional updates.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger returns a ledger on db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Create stores p as a new pending payment.
func (l *Ledger) Create(ctx context.Context, p *models.Payment) error {
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}

	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}

	p.Status = models.PaymentPending

	if err := l.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	transitionCounter.WithLabelValues(p.Gateway, string(p.Status)).Inc()

	return nil
}

// Find returns the payment with id.
func (l *Ledger) Find(ctx context.Context, id uint64) (*models.Payment, error) {
	return l.first(l.db.WithContext(ctx).Where("id = ?", id))
}

// FindByUUID returns the payment with the public id.
func (l *Ledger) FindByUUID(ctx context.Context, id string) (*models.Payment, error) {
	return l.first(l.db.WithContext(ctx).Where("uuid = ?", id))
}

// FindByReference returns the payment a provider reference belongs to.
func (l *Ledger) FindByReference(ctx context.Context, gateway, reference string) (*models.Payment, error) {
	if reference == "" {
		return nil, ErrPaymentNotFound
	}

	return l.first(l.db.WithContext(ctx).Where("gateway = ? AND gateway_reference = ?", gateway, reference))
}

func (l *Ledger) first(query *gorm.DB) (*models.Payment, error) {
	var p models.Payment

	if err := query.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}

		return nil, err
	}

	return &p, nil
}

// List returns one page of payments, newest first, and the total count.
func (l *Ledger) List(ctx context.Context, f Filter, page, perPage int) ([]models.Payment, int64, error) {
	query := l.db.WithContext(ctx).Model(&models.Payment{})

	if f.UserID != 0 {
		query = query.Where("user_id = ?", f.UserID)
	}

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	if f.Gateway != "" {
		query = query.Where("gateway = ?", f.Gateway)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}

	if perPage < 1 {
		perPage = 20
	}

	payments := []models.Payment{}

	err := query.Order("id DESC").Offset((page - 1) * perPage).Limit(perPage).Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

// ListByUser is List restricted to one user.
func (l *Ledger) ListByUser(ctx context.Context, userID uint64, page, perPage int) ([]models.Payment, int64, error) {
	return l.List(ctx, Filter{UserID: userID}, page, perPage)
}

// Transition moves p to status to if it is still in one of from. It reports false when another
// request changed the status first. On success p is reloaded.
func (l *Ledger) Transition(ctx context.Context, p *models.Payment, from []models.PaymentStatus, to models.PaymentStatus, updates map[string]any) (bool, error) {
	for _, f := range from {
		if !f.CanMoveTo(to) {
			return false, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, f, to)
		}
	}

	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}

	res := l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", p.ID, from).
		Updates(values)
	if res.Error != nil {
		return false, fmt.Errorf("update payment %s: %w", p.UUID, res.Error)
	}

	if err := l.reload(ctx, p); err != nil {
		return false, err
	}

	if res.RowsAffected == 0 {
		return false, nil
	}

	transitionCounter.WithLabelValues(p.Gateway, string(to)).Inc()

	return true, nil
}

// Confirm marks p confirmed with the captured amount, only from pending or processing.
func (l *Ledger) Confirm(ctx context.Context, p *models.Payment, reference string, captured int64) (bool, error) {
	updates := map[string]any{
		"captured_amount": captured,
		"confirmed_at":    l.now().UTC(),
	}

	if reference != "" {
		updates["gateway_reference"] = reference
	}

	return l.Transition(ctx, p, []models.PaymentStatus{models.PaymentPending, models.PaymentProcessing}, models.PaymentConfirmed, updates)
}

// Fail marks p failed with reason, only from pending or processing.
func (l *Ledger) Fail(ctx context.Context, p *models.Payment, reason string) (bool, error) {
	return l.Transition(ctx, p, []models.PaymentStatus{models.PaymentPending, models.PaymentProcessing}, models.PaymentFailed,
		map[string]any{"failure_reason": truncate(reason, maxReasonLen)})
}

// Attach stores the provider reference and merges meta into the metadata of p.
func (l *Ledger) Attach(ctx context.Context, p *models.Payment, reference string, meta map[string]any) error {
	updates := map[string]any{}

	if reference != "" {
		updates["gateway_reference"] = reference
	}

	if len(meta) > 0 {
		merged := copyMeta(p.Metadata)
		for k, v := range meta {
			merged[k] = v
		}

		updates["metadata"] = datatypes.JSONMap(merged)
	}

	if len(updates) == 0 {
		return nil
	}

	if err := l.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return err
	}

	return l.reload(ctx, p)
}

// ReserveRefund adds amount to the refunded total of a confirmed payment before the provider is
// asked to pay it out. It reports false, leaving the row untouched, when the refund does not fit.
func (l *Ledger) ReserveRefund(ctx context.Context, p *models.Payment, amount int64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	res := l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ? AND refunded_amount + ? <= captured_amount", p.ID, models.PaymentConfirmed, amount).
		UpdateColumns(map[string]any{
			"refunded_amount": gorm.Expr("refunded_amount + ?", amount),
			"updated_at":      l.now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("reserve refund of payment %s: %w", p.UUID, res.Error)
	}

	if err := l.reload(ctx, p); err != nil {
		return false, err
	}

	return res.RowsAffected == 1, nil
}

// ReleaseRefund gives back a reservation the provider did not pay out.
func (l *Ledger) ReleaseRefund(ctx context.Context, p *models.Payment, amount int64) error {
	res := l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ? AND refunded_amount >= ?", p.ID, models.PaymentConfirmed, amount).
		UpdateColumns(map[string]any{
			"refunded_amount": gorm.Expr("refunded_amount - ?", amount),
			"updated_at":      l.now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("release refund of payment %s: %w", p.UUID, res.Error)
	}

	return l.reload(ctx, p)
}

// CompleteRefund moves p to refunded once everything captured is refunded.
func (l *Ledger) CompleteRefund(ctx context.Context, p *models.Payment) (bool, error) {
	res := l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ? AND refunded_amount >= captured_amount", p.ID, models.PaymentConfirmed).
		UpdateColumns(map[string]any{"status": models.PaymentRefunded, "updated_at": l.now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("complete refund of payment %s: %w", p.UUID, res.Error)
	}

	if err := l.reload(ctx, p); err != nil {
		return false, err
	}

	if res.RowsAffected == 0 {
		return false, nil
	}

	transitionCounter.WithLabelValues(p.Gateway, string(models.PaymentRefunded)).Inc()

	return true, nil
}

// ClaimFulfillment marks p fulfilled. Only one caller gets true for a payment.
func (l *Ledger) ClaimFulfillment(ctx context.Context, p *models.Payment) (bool, error) {
	res := l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND fulfilled_at IS NULL", p.ID).
		UpdateColumn("fulfilled_at", l.now().UTC())
	if res.Error != nil {
		return false, fmt.Errorf("claim fulfillment of payment %s: %w", p.UUID, res.Error)
	}

	if err := l.reload(ctx, p); err != nil {
		return false, err
	}

	return res.RowsAffected == 1, nil
}

// ReleaseFulfillment undoes a claim whose fulfillment failed, a later confirm or reconcile retries it.
func (l *Ledger) ReleaseFulfillment(ctx context.Context, p *models.Payment) error {
	err := l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", p.ID).
		UpdateColumn("fulfilled_at", nil).Error
	if err != nil {
		return fmt.Errorf("release fulfillment of payment %s: %w", p.UUID, err)
	}

	return l.reload(ctx, p)
}

func (l *Ledger) reload(ctx context.Context, p *models.Payment) error {
	fresh, err := l.Find(ctx, p.ID)
	if err != nil {
		return err
	}

	*p = *fresh

	return nil
}

// truncate cuts s to at most n bytes without splitting a character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
