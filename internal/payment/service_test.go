package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/settings"
)

type activation struct {
	userID    uint64
	planID    uint
	paymentID uint64
}

type fakeActivator struct {
	calls []activation
	err   error
}

func (f *fakeActivator) Activate(_ context.Context, userID uint64, planID uint, paymentID uint64) error {
	if f.err != nil {
		return f.err
	}

	f.calls = append(f.calls, activation{userID: userID, planID: planID, paymentID: paymentID})

	return nil
}

func newTestService(t *testing.T, driver *fakeDriver) (*Service, *fakeActivator) {
	t.Helper()

	registry := NewRegistry()
	registry.Register("fake", func(s settings.Payment, _ config.Payment) (Driver, error) {
		return driver, nil
	})
	registry.Register("locked", func(s settings.Payment, _ config.Payment) (Driver, error) {
		if s.SecretKey == "" {
			return nil, ErrMissingCredentials
		}

		return driver, nil
	})

	activator := &fakeActivator{}
	svc := NewService(setupTestDB(t), registry, config.Payment{}, nil, activator)
	svc.Rebuild(settings.Payment{Gateway: "fake", Currency: "SAR"})

	return svc, activator
}

func TestServiceGatewayResolution(t *testing.T) {
	svc, _ := newTestService(t, &fakeDriver{})

	gw, err := svc.Active()
	require.NoError(t, err)
	assert.Equal(t, "fake", gw.GetGatewayName())

	_, err = svc.Gateway("locked")
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	_, err = svc.For(&models.Payment{Gateway: "paypal"})
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	svc.OnSettingsSaved(context.Background(), settings.Payment{Gateway: "locked", Currency: "SAR", SecretKey: "sk"})

	gw, err = svc.Active()
	require.NoError(t, err)
	assert.Equal(t, "fake", gw.GetGatewayName())

	_, err = svc.Gateway("locked")
	require.NoError(t, err)

	assert.Equal(t, []string{"fake", "locked"}, svc.registry.Names())

	_, err = svc.registry.Build("paypal", settings.Payment{}, config.Payment{})
	require.ErrorIs(t, err, ErrUnknownGateway)
}

func TestConfirmActivatesPlan(t *testing.T) {
	driver := &fakeDriver{charge: Charge{Reference: "ref", Status: models.PaymentConfirmed, Amount: 1900, Captured: 1900, Currency: "SAR"}}
	svc, activator := newTestService(t, driver)

	gw, err := svc.Active()
	require.NoError(t, err)

	p, err := gw.CreatePayment(context.Background(), &models.User{ID: 1}, 1900, CreateData{
		SourceToken: "tok",
		Metadata:    map[string]any{MetaPlanID: "7"},
	})
	require.NoError(t, err)

	ok, err := gw.ProcessPayment(context.Background(), p)
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, activator.calls, 1)
	assert.Equal(t, activation{userID: 1, planID: 7, paymentID: p.ID}, activator.calls[0])
}

func TestFailedActivationIsReplayed(t *testing.T) {
	tests := []struct {
		name   string
		replay func(t *testing.T, svc *Service, gw Gateway, p *models.Payment) error
	}{
		{
			name: "by a repeated confirmation",
			replay: func(t *testing.T, _ *Service, gw Gateway, p *models.Payment) error {
				ok, err := gw.ConfirmPayment(context.Background(), p, nil)
				assert.True(t, ok)

				return err
			},
		},
		{
			name: "by reconcile",
			replay: func(t *testing.T, svc *Service, _ Gateway, p *models.Payment) error {
				_, err := svc.Reconcile(context.Background(), p)

				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &fakeDriver{
				charge: Charge{Reference: "ref", Status: models.PaymentConfirmed, Amount: 1900, Captured: 1900, Currency: "SAR"},
				fetch:  Charge{Reference: "ref", Status: models.PaymentConfirmed, Amount: 1900, Captured: 1900, Currency: "SAR"},
			}
			svc, activator := newTestService(t, driver)
			activator.err = errors.New("database is locked")

			gw, err := svc.Active()
			require.NoError(t, err)

			p, err := gw.CreatePayment(context.Background(), &models.User{ID: 1}, 1900, CreateData{
				Metadata: map[string]any{MetaPlanID: "7"},
			})
			require.NoError(t, err)

			ok, err := gw.ProcessPayment(context.Background(), p)
			require.ErrorIs(t, err, ErrFulfillmentPending)
			require.ErrorIs(t, err, activator.err)
			assert.True(t, ok)
			assert.Empty(t, activator.calls)

			stored, err := svc.Ledger().Find(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Equal(t, models.PaymentConfirmed, stored.Status)
			assert.Nil(t, stored.FulfilledAt)

			activator.err = nil

			require.NoError(t, tt.replay(t, svc, gw, stored))
			require.Len(t, activator.calls, 1)
			assert.Equal(t, activation{userID: 1, planID: 7, paymentID: p.ID}, activator.calls[0])

			stored, err = svc.Ledger().Find(context.Background(), p.ID)
			require.NoError(t, err)
			assert.NotNil(t, stored.FulfilledAt)

			require.NoError(t, tt.replay(t, svc, gw, stored))
			assert.Len(t, activator.calls, 1)
		})
	}
}

func TestReconcileAdoptsChargeLostInTransport(t *testing.T) {
	driver := &fakeDriver{chargeEr: errors.New("i/o timeout")}
	svc, activator := newTestService(t, driver)

	gw, err := svc.Active()
	require.NoError(t, err)

	p, err := gw.CreatePayment(context.Background(), &models.User{ID: 1}, 1900, CreateData{
		Metadata: map[string]any{MetaPlanID: "7"},
	})
	require.NoError(t, err)

	_, err = gw.ProcessPayment(context.Background(), p)
	require.Error(t, err)

	p, err = svc.Reconcile(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentProcessing, p.Status)

	remote := Charge{Reference: "ch_9", PaymentID: p.UUID, Status: models.PaymentConfirmed, Amount: 1900, Captured: 1900, Currency: "SAR"}
	driver.lookup = &remote
	driver.fetch = remote

	p, err = svc.Reconcile(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentConfirmed, p.Status)
	assert.Equal(t, "ch_9", p.GatewayReference)
	assert.Len(t, activator.calls, 1)
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		start    func(t *testing.T, gw Gateway, p *models.Payment)
		remote   Charge
		expected models.PaymentStatus
	}{
		{
			name: "processing to confirmed",
			start: func(t *testing.T, gw Gateway, p *models.Payment) {
				_, err := gw.ProcessPayment(context.Background(), p)
				require.NoError(t, err)
			},
			remote:   Charge{Reference: "ref", Status: models.PaymentConfirmed, Amount: 1000, Currency: "SAR"},
			expected: models.PaymentConfirmed,
		},
		{
			name: "processing to failed",
			start: func(t *testing.T, gw Gateway, p *models.Payment) {
				_, err := gw.ProcessPayment(context.Background(), p)
				require.NoError(t, err)
			},
			remote:   Charge{Reference: "ref", Status: models.PaymentFailed},
			expected: models.PaymentFailed,
		},
		{
			name: "never moves backwards",
			start: func(t *testing.T, gw Gateway, p *models.Payment) {
				_, err := gw.ProcessPayment(context.Background(), p)
				require.NoError(t, err)
			},
			remote:   Charge{Reference: "ref", Status: models.PaymentPending},
			expected: models.PaymentProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &fakeDriver{charge: Charge{Reference: "ref", Status: models.PaymentProcessing}, fetch: tt.remote}
			svc, _ := newTestService(t, driver)

			gw, err := svc.Active()
			require.NoError(t, err)

			p, err := gw.CreatePayment(context.Background(), &models.User{ID: 1}, 1000, CreateData{})
			require.NoError(t, err)

			tt.start(t, gw, p)

			p, err = svc.Reconcile(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Status)
		})
	}
}

func TestReconcileRefundedAtProvider(t *testing.T) {
	driver := &fakeDriver{
		charge: Charge{Reference: "ref", Status: models.PaymentConfirmed, Amount: 1000, Captured: 1000, Currency: "SAR"},
		fetch:  Charge{Reference: "ref", Status: models.PaymentRefunded},
	}
	svc, _ := newTestService(t, driver)

	gw, err := svc.Active()
	require.NoError(t, err)

	p, err := gw.CreatePayment(context.Background(), &models.User{ID: 1}, 1000, CreateData{})
	require.NoError(t, err)

	_, err = gw.ProcessPayment(context.Background(), p)
	require.NoError(t, err)

	p, err = svc.Reconcile(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, p.Status)
	assert.Equal(t, int64(1000), p.RefundedAmount)
}

func TestLedgerList(t *testing.T) {
	svc, _ := newTestService(t, &fakeDriver{})
	ledger := svc.Ledger()

	for i := 0; i < 3; i++ {
		require.NoError(t, ledger.Create(context.Background(), &models.Payment{UserID: 1, Gateway: "fake", Amount: 100, Currency: "SAR"}))
	}

	page, total, err := ledger.ListByUser(context.Background(), 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)
	assert.Greater(t, page[0].ID, page[1].ID)

	none, total, err := ledger.List(context.Background(), Filter{Status: models.PaymentConfirmed}, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)

	_, err = ledger.FindByUUID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = ledger.Transition(context.Background(), &page[0], []models.PaymentStatus{models.PaymentFailed}, models.PaymentConfirmed, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
}
