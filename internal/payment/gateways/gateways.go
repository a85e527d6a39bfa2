// Package gateways registers the available payment drivers.
package gateways

import (
	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/payment"
	"github.com/cardforge/cardforge/internal/payment/moyasar"
	"github.com/cardforge/cardforge/internal/payment/stripe"
	"github.com/cardforge/cardforge/internal/settings"
)

// NewRegistry returns a registry with every driver.
func NewRegistry() *payment.Registry {
	r := payment.NewRegistry()

	r.Register(moyasar.Name, func(s settings.Payment, cfg config.Payment) (payment.Driver, error) {
		d, err := moyasar.New(moyasar.Config{
			BaseURL:   cfg.Moyasar.BaseURL,
			SecretKey: s.SecretKey,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}

		return d, nil
	})

	r.Register(stripe.Name, func(s settings.Payment, cfg config.Payment) (payment.Driver, error) {
		d, err := stripe.New(stripe.Config{
			BaseURL:   cfg.Stripe.BaseURL,
			SecretKey: s.StripeSecretKey,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}

		return d, nil
	})

	return r
}
