package otp

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/sms"
	"github.com/cardforge/cardforge/internal/uniuri"
)

const testPhone = "+966500000001"

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type sent struct {
	to, message, provider string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, message, provider string) (*sms.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	f.sent = append(f.sent, sent{to: to, message: message, provider: provider})

	name := provider
	if name == "" {
		name = sms.LogName
	}

	return &sms.Result{Provider: name, MessageID: "msg-1"}, nil
}

func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	require.NotEmpty(t, f.sent)

	m := codePattern.FindStringSubmatch(f.sent[len(f.sent)-1].message)
	require.Len(t, m, 2)

	return m[1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T) (*Manager, *fakeSender, *clock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.OTP{}))

	sender := &fakeSender{}
	c := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}

	m := NewManager(db, sender, config.OTP{
		Length:        6,
		TTL:           5 * time.Minute,
		Cooldown:      time.Minute,
		MaxAttempts:   5,
		DefaultLocale: "en",
	}, "CardForge")
	m.now = c.Now

	return m, sender, c
}

func TestSendAndVerify(t *testing.T) {
	m, sender, _ := setup(t)
	ctx := context.Background()

	res, err := m.Send(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, sms.LogName, res.Provider)
	assert.Equal(t, "msg-1", res.MessageID)
	assert.Equal(t, 60, res.CooldownSeconds)
	assert.Equal(t, 300, res.ExpiresIn)
	assert.Contains(t, sender.sent[0].message, "CardForge")
	assert.Contains(t, sender.sent[0].message, "5 minutes")

	code := sender.lastCode(t)

	valid, err := m.HasValidOtp(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.True(t, valid)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	require.ErrorIs(t, m.Verify(ctx, testPhone, wrong, PurposeVerification), ErrCodeMismatch)

	left, err := m.GetRemainingAttempts(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.Equal(t, 4, left)

	require.NoError(t, m.Verify(ctx, testPhone, code, PurposeVerification))
	require.ErrorIs(t, m.Verify(ctx, testPhone, code, PurposeVerification), ErrNoActiveCode)

	valid, err = m.HasValidOtp(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.False(t, valid)

	left, err = m.GetRemainingAttempts(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestPurposesAreSeparate(t *testing.T) {
	m, sender, _ := setup(t)
	ctx := context.Background()

	_, err := m.Send(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)

	verificationCode := sender.lastCode(t)

	_, err = m.Send(ctx, testPhone, PurposeLogin)
	require.NoError(t, err)

	require.ErrorIs(t, m.Verify(ctx, testPhone, verificationCode, PurposePasswordReset), ErrNoActiveCode)
	require.NoError(t, m.Verify(ctx, testPhone, verificationCode, PurposeVerification))
}

func TestSendCooldown(t *testing.T) {
	m, sender, c := setup(t)
	ctx := context.Background()

	_, err := m.Send(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)

	first := sender.lastCode(t)

	c.Advance(20 * time.Second)

	res, err := m.Resend(ctx, testPhone, PurposeVerification)

	var cerr *CooldownError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 40*time.Second, cerr.Remaining)
	assert.False(t, res.Success)
	assert.Equal(t, 40, res.CooldownSeconds)
	assert.Len(t, sender.sent, 1)

	seconds, err := m.GetCooldownSeconds(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.Equal(t, 40, seconds)

	// the code of the refused send stays valid
	c.Advance(40 * time.Second)

	seconds, err = m.GetCooldownSeconds(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.Zero(t, seconds)

	_, err = m.Resend(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.Len(t, sender.sent, 2)

	second := sender.lastCode(t)
	if first != second {
		require.ErrorIs(t, m.Verify(ctx, testPhone, first, PurposeVerification), ErrCodeMismatch)
	}

	require.NoError(t, m.Verify(ctx, testPhone, second, PurposeVerification))
}

func TestVerifyExpiredCode(t *testing.T) {
	m, sender, c := setup(t)
	ctx := context.Background()

	_, err := m.Send(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)

	code := sender.lastCode(t)

	c.Advance(5*time.Minute + time.Second)

	require.ErrorIs(t, m.Verify(ctx, testPhone, code, PurposeVerification), ErrCodeExpired)

	valid, err := m.HasValidOtp(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestVerifyAttemptLimit(t *testing.T) {
	m, sender, c := setup(t)
	ctx := context.Background()

	_, err := m.Send(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)

	code := sender.lastCode(t)

	wrong := "123456"
	if code == wrong {
		wrong = "654321"
	}

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, m.Verify(ctx, testPhone, wrong, PurposeVerification), ErrCodeMismatch)
	}

	require.ErrorIs(t, m.Verify(ctx, testPhone, code, PurposeVerification), ErrTooManyAttempts)

	left, err := m.GetRemainingAttempts(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.Zero(t, left)

	c.Advance(time.Minute)

	_, err = m.Send(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)

	left, err = m.GetRemainingAttempts(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.Equal(t, 5, left)

	require.NoError(t, m.Verify(ctx, testPhone, sender.lastCode(t), PurposeVerification))
}

func TestInvalidate(t *testing.T) {
	m, sender, _ := setup(t)
	ctx := context.Background()

	_, err := m.Send(ctx, testPhone, PurposeLogin)
	require.NoError(t, err)

	require.NoError(t, m.Invalidate(ctx, testPhone, PurposeLogin))
	require.ErrorIs(t, m.Verify(ctx, testPhone, sender.lastCode(t), PurposeLogin), ErrNoActiveCode)

	_, err = m.Send(ctx, testPhone, PurposeLogin)

	var cerr *CooldownError
	require.ErrorAs(t, err, &cerr)
}

func TestDeliveryFailureInvalidatesCode(t *testing.T) {
	m, sender, _ := setup(t)
	ctx := context.Background()

	sender.err = &sms.DeliveryError{Provider: "twilio", StatusCode: 500, Reason: "down"}

	res, err := m.Send(ctx, testPhone, PurposeVerification, WithProvider("twilio"))
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.False(t, res.Success)

	var derr *sms.DeliveryError
	require.ErrorAs(t, err, &derr)

	valid, err := m.HasValidOtp(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.False(t, valid)

	sender.err = nil

	res, err = m.Send(ctx, testPhone, PurposeVerification, WithProvider("twilio"))
	require.NoError(t, err)
	assert.Equal(t, "twilio", res.Provider)
	assert.Equal(t, "twilio", sender.sent[0].provider)
}

func TestLocalizedMessage(t *testing.T) {
	tests := []struct {
		name   string
		locale string
		want   string
	}{
		{name: "default english", locale: "", want: "Your CardForge verification code"},
		{name: "arabic", locale: "ar-SA", want: "رمز التحقق"},
		{name: "accept language falls back to arabic", locale: "fr-FR, ar;q=0.8", want: "رمز التحقق"},
		{name: "unsupported", locale: "de", want: "Your CardForge verification code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sender, _ := setup(t)

			_, err := m.Send(context.Background(), testPhone, PurposeVerification, WithLocale(tt.locale))
			require.NoError(t, err)
			assert.Contains(t, sender.sent[0].message, tt.want)
			assert.Regexp(t, codePattern, sender.sent[0].message)
		})
	}
}

func TestConcurrentSendIssuesOneCode(t *testing.T) {
	m, sender, _ := setup(t)
	ctx := context.Background()

	const workers = 10

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		cooldowns int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := m.Send(ctx, testPhone, PurposeVerification)

			var cerr *CooldownError

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				successes++
			case errors.As(err, &cerr):
				cooldowns++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, cooldowns)
	assert.Len(t, sender.sent, 1)
}

func TestConcurrentVerifyConsumesOnce(t *testing.T) {
	m, sender, _ := setup(t)
	ctx := context.Background()

	_, err := m.Send(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)

	code := sender.lastCode(t)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if m.Verify(ctx, testPhone, code, PurposeVerification) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, ok)
}

func TestVerifyChargesTheCodeItChecks(t *testing.T) {
	m, sender, _ := setup(t)
	ctx := context.Background()

	_, err := m.Send(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)

	previous := sender.lastCode(t)

	// a send for the same phone lands right after verify read the row
	var once sync.Once

	err = m.db.Callback().Query().After("gorm:query").Register("test:resend", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*models.OTP); !ok {
			return
		}

		once.Do(func() {
			require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Model(&models.OTP{}).
				Where("phone = ?", testPhone).
				Updates(map[string]any{"secret": uniuri.NewSecret(), "attempts": 0}).Error)
		})
	})
	require.NoError(t, err)

	require.ErrorIs(t, m.Verify(ctx, testPhone, previous, PurposeVerification), ErrCodeMismatch)

	left, err := m.GetRemainingAttempts(ctx, testPhone, PurposeVerification)
	require.NoError(t, err)
	assert.Equal(t, 4, left)
}

func TestInputValidation(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	_, err := m.Send(ctx, " ", PurposeVerification)
	require.ErrorIs(t, err, ErrPhoneEmpty)

	_, err = m.Send(ctx, testPhone, "")
	require.ErrorIs(t, err, ErrPurposeEmpty)

	require.ErrorIs(t, m.Verify(ctx, testPhone, "1", " "), ErrPurposeEmpty)
	require.ErrorIs(t, m.Verify(ctx, testPhone, "123456", PurposeVerification), ErrNoActiveCode)
}

func TestCooldownErrorSeconds(t *testing.T) {
	assert.Equal(t, 1, (&CooldownError{Remaining: 10 * time.Millisecond}).Seconds())
	assert.Equal(t, 3, (&CooldownError{Remaining: 2100 * time.Millisecond}).Seconds())
	assert.Zero(t, (&CooldownError{}).Seconds())
}
