package gateways

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/payment"
	"github.com/cardforge/cardforge/internal/settings"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"moyasar", "stripe"}, r.Names())

	cfg := config.Payment{Timeout: time.Second}

	_, err := r.Build("moyasar", settings.Payment{}, cfg)
	require.ErrorIs(t, err, payment.ErrMissingCredentials)

	d, err := r.Build("moyasar", settings.Payment{SecretKey: "sk_test"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "moyasar", d.Name())
	assert.False(t, d.Recurring())

	_, err = r.Build("stripe", settings.Payment{SecretKey: "sk_test"}, cfg)
	require.ErrorIs(t, err, payment.ErrMissingCredentials)

	d, err = r.Build("stripe", settings.Payment{StripeSecretKey: "sk_test"}, cfg)
	require.NoError(t, err)
	assert.True(t, d.Recurring())
}
