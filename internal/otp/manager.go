// Package otp issues and verifies one-time codes delivered by sms.
//
// There is at most one code per phone and purpose. Cooldown checks, attempt counting and
// invalidation are single conditional UPDATE statements, so concurrent requests for the same
// phone cannot both pass a check.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/sms"
	"github.com/cardforge/cardforge/internal/uniuri"
)

// Purposes used by the application.
const (
	PurposeVerification  = "verification"
	PurposeLogin         = "login"
	PurposePasswordReset = "password_reset"
)

// Sender delivers a text message, *sms.Manager satisfies it.
type Sender interface {
	Send(ctx context.Context, to, message, provider string) (*sms.Result, error)
}

// Result reports the outcome of a send.
type Result struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	Provider        string `json:"provider,omitempty"`
	MessageID       string `json:"messageId,omitempty"`
	CooldownSeconds int    `json:"cooldownSeconds"`
	ExpiresIn       int    `json:"expiresIn,omitempty"`
}

// Option customizes a single send.
type Option func(*sendOptions)

type sendOptions struct {
	provider string
	locale   string
}

// WithProvider sends through the named sms provider instead of the default one.
func WithProvider(name string) Option {
	return func(o *sendOptions) { o.provider = name }
}

// WithLocale selects the message language, an Accept-Language value works too.
func WithLocale(locale string) Option {
	return func(o *sendOptions) { o.locale = locale }
}

// Manager issues and checks codes.
type Manager struct {
	db     *gorm.DB
	sender Sender
	cfg    config.OTP
	app    string
	now    func() time.Time
}

// NewManager returns a manager storing codes in db and sending them with sender.
func NewManager(db *gorm.DB, sender Sender, cfg config.OTP, appName string) *Manager {
	return &Manager{
		db:     db,
		sender: sender,
		cfg:    cfg,
		app:    appName,
		now:    time.Now,
	}
}

// Send issues a new code for phone and purpose and delivers it.
// While the cooldown of the previous code runs, no code is issued and a *CooldownError is returned.
func (m *Manager) Send(ctx context.Context, phone, purpose string, opts ...Option) (*Result, error) {
	phone, purpose, err := normalize(phone, purpose)
	if err != nil {
		return nil, err
	}

	o := sendOptions{locale: m.cfg.DefaultLocale}
	for _, opt := range opts {
		opt(&o)
	}

	rec, err := m.issue(ctx, phone, purpose, o.provider)
	if err != nil {
		var cerr *CooldownError
		if errors.As(err, &cerr) {
			sentCounter.WithLabelValues(o.provider, purpose, "cooldown").Inc()

			return &Result{
				Message:         fmt.Sprintf("Please wait %d seconds before requesting a new code.", cerr.Seconds()),
				CooldownSeconds: cerr.Seconds(),
			}, err
		}

		return nil, err
	}

	code, err := m.code(rec)
	if err != nil {
		return nil, err
	}

	text := render(matchLocale(o.locale, m.cfg.DefaultLocale), m.app, code, int(m.cfg.TTL/time.Minute))

	out, err := m.sender.Send(ctx, phone, text, o.provider)
	if err != nil {
		log.Error().Err(err).Str("purpose", purpose).Str("provider", o.provider).Msg("otp delivery failed")
		sentCounter.WithLabelValues(o.provider, purpose, "failed").Inc()

		if ierr := m.discard(ctx, rec); ierr != nil {
			log.Error().Err(ierr).Msg("failed to invalidate undelivered otp")
		}

		return &Result{Message: "The verification code could not be sent."}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	if out.Provider != rec.Provider {
		err = m.db.WithContext(ctx).Model(&models.OTP{}).Where("id = ?", rec.ID).UpdateColumn("provider", out.Provider).Error
		if err != nil {
			log.Warn().Err(err).Msg("failed to store otp provider")
		}
	}

	sentCounter.WithLabelValues(out.Provider, purpose, "sent").Inc()

	return &Result{
		Success:         true,
		Message:         "Verification code sent.",
		Provider:        out.Provider,
		MessageID:       out.MessageID,
		CooldownSeconds: ceilSeconds(m.cfg.Cooldown),
		ExpiresIn:       ceilSeconds(m.cfg.TTL),
	}, nil
}

// Resend is Send for an explicit resend action of the user; the cooldown applies the same way.
func (m *Manager) Resend(ctx context.Context, phone, purpose string, opts ...Option) (*Result, error) {
	return m.Send(ctx, phone, purpose, opts...)
}

// Verify checks code. Each call uses up one attempt, a match invalidates the code.
func (m *Manager) Verify(ctx context.Context, phone, code, purpose string) error {
	phone, purpose, err := normalize(phone, purpose)
	if err != nil {
		return err
	}

	err = m.verify(ctx, phone, strings.TrimSpace(code), purpose)

	result := "ok"

	switch {
	case errors.Is(err, ErrCodeMismatch):
		result = "mismatch"
	case errors.Is(err, ErrCodeExpired):
		result = "expired"
	case errors.Is(err, ErrTooManyAttempts):
		result = "locked"
	case errors.Is(err, ErrNoActiveCode):
		result = "none"
	case err != nil:
		result = "error"
	}

	verifyCounter.WithLabelValues(purpose, result).Inc()

	return err
}

func (m *Manager) verify(ctx context.Context, phone, code, purpose string) error {
	db := m.db.WithContext(ctx)
	now := m.now().UTC()

	// the secret identifies the issued code, a send in between replaces it and the round repeats
	for range 2 {
		rec, err := m.find(ctx, phone, purpose)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveCode
		}

		if err != nil {
			return err
		}

		res := db.Model(&models.OTP{}).
			Where("id = ? AND secret = ? AND consumed = ? AND expires_at > ? AND attempts < ?",
				rec.ID, rec.Secret, false, now, m.cfg.MaxAttempts).
			UpdateColumn("attempts", gorm.Expr("attempts + 1"))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			if rec.Consumed || !rec.ExpiresAt.After(now) || rec.Attempts >= m.cfg.MaxAttempts {
				return m.rejection(rec, now)
			}

			continue
		}

		return m.check(ctx, rec, code)
	}

	return ErrNoActiveCode
}

// check compares code against rec, the attempt has already been charged to rec.
func (m *Manager) check(ctx context.Context, rec *models.OTP, code string) error {
	expected, err := m.code(rec)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) != 1 {
		return ErrCodeMismatch
	}

	res := m.db.WithContext(ctx).Model(&models.OTP{}).
		Where("id = ? AND consumed = ? AND secret = ?", rec.ID, false, rec.Secret).
		UpdateColumn("consumed", true)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrNoActiveCode
	}

	return nil
}

// rejection explains why no attempt could be taken on rec.
func (m *Manager) rejection(rec *models.OTP, now time.Time) error {
	switch {
	case rec.Consumed:
		return ErrNoActiveCode
	case !rec.ExpiresAt.After(now):
		return ErrCodeExpired
	default:
		return ErrTooManyAttempts
	}
}

// HasValidOtp reports whether a code can still be verified.
func (m *Manager) HasValidOtp(ctx context.Context, phone, purpose string) (bool, error) {
	rec, err := m.active(ctx, phone, purpose)
	if err != nil {
		return false, err
	}

	return rec != nil, nil
}

// GetCooldownSeconds returns the seconds until a new code may be sent.
func (m *Manager) GetCooldownSeconds(ctx context.Context, phone, purpose string) (int, error) {
	phone, purpose, err := normalize(phone, purpose)
	if err != nil {
		return 0, err
	}

	rec, err := m.find(ctx, phone, purpose)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	return ceilSeconds(rec.CooldownUntil.Sub(m.now().UTC())), nil
}

// GetRemainingAttempts returns the attempts left for the active code, 0 without one.
func (m *Manager) GetRemainingAttempts(ctx context.Context, phone, purpose string) (int, error) {
	rec, err := m.active(ctx, phone, purpose)
	if err != nil || rec == nil {
		return 0, err
	}

	return m.cfg.MaxAttempts - rec.Attempts, nil
}

// Invalidate makes the current code unusable. The cooldown is left untouched.
func (m *Manager) Invalidate(ctx context.Context, phone, purpose string) error {
	phone, purpose, err := normalize(phone, purpose)
	if err != nil {
		return err
	}

	return m.db.WithContext(ctx).Model(&models.OTP{}).
		Where("phone = ? AND purpose = ?", phone, purpose).
		UpdateColumn("consumed", true).Error
}

// issue stores a fresh code unless the cooldown of the stored one is still running.
func (m *Manager) issue(ctx context.Context, phone, purpose, provider string) (*models.OTP, error) {
	db := m.db.WithContext(ctx)
	now := m.now().UTC()

	rec := &models.OTP{
		Phone:         phone,
		Purpose:       purpose,
		Secret:        uniuri.NewSecret(),
		IssuedAt:      now.Truncate(time.Second),
		ExpiresAt:     now.Add(m.cfg.TTL),
		CooldownUntil: now.Add(m.cfg.Cooldown),
		Provider:      provider,
	}

	// two rounds: a concurrent first send may win the insert, the second round then sees its cooldown
	for range 2 {
		res := db.Model(&models.OTP{}).
			Where("phone = ? AND purpose = ? AND cooldown_until <= ?", phone, purpose, now).
			Updates(map[string]any{
				"secret":         rec.Secret,
				"issued_at":      rec.IssuedAt,
				"expires_at":     rec.ExpiresAt,
				"cooldown_until": rec.CooldownUntil,
				"attempts":       0,
				"consumed":       false,
				"provider":       provider,
			})
		if res.Error != nil {
			return nil, res.Error
		}

		if res.RowsAffected == 1 {
			existing, err := m.find(ctx, phone, purpose)
			if err != nil {
				return nil, err
			}

			rec.ID = existing.ID

			return rec, nil
		}

		existing, err := m.find(ctx, phone, purpose)
		if err == nil {
			if existing.CooldownUntil.After(now) {
				return nil, &CooldownError{Remaining: existing.CooldownUntil.Sub(now)}
			}

			continue
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		if err := db.Create(rec).Error; err == nil {
			return rec, nil
		}

		rec.ID = 0
	}

	return nil, &CooldownError{Remaining: m.cfg.Cooldown}
}

// discard invalidates a code that never reached the user and lifts its cooldown.
func (m *Manager) discard(ctx context.Context, rec *models.OTP) error {
	return m.db.WithContext(ctx).Model(&models.OTP{}).
		Where("id = ? AND secret = ?", rec.ID, rec.Secret).
		Updates(map[string]any{"consumed": true, "cooldown_until": m.now().UTC()}).Error
}

func (m *Manager) active(ctx context.Context, phone, purpose string) (*models.OTP, error) {
	phone, purpose, err := normalize(phone, purpose)
	if err != nil {
		return nil, err
	}

	rec, err := m.find(ctx, phone, purpose)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if rec.Consumed || !rec.ExpiresAt.After(m.now().UTC()) || rec.Attempts >= m.cfg.MaxAttempts {
		return nil, nil
	}

	return rec, nil
}

func (m *Manager) find(ctx context.Context, phone, purpose string) (*models.OTP, error) {
	var rec models.OTP

	err := m.db.WithContext(ctx).Where("phone = ? AND purpose = ?", phone, purpose).First(&rec).Error
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// code derives the digits of rec, the issue time in seconds is the HOTP counter.
func (m *Manager) code(rec *models.OTP) (string, error) {
	return hotp.GenerateCodeCustom(rec.Secret, uint64(rec.IssuedAt.Unix()), hotp.ValidateOpts{ //nolint:gosec
		Digits:    otp.Digits(m.cfg.Length),
		Algorithm: otp.AlgorithmSHA1,
	})
}

func normalize(phone, purpose string) (string, string, error) {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	purpose = strings.TrimSpace(purpose)

	if phone == "" {
		return "", "", ErrPhoneEmpty
	}

	if purpose == "" {
		return "", "", ErrPurposeEmpty
	}

	return phone, purpose, nil
}
