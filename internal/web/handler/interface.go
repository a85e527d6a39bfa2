package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/otp"
	"github.com/cardforge/cardforge/internal/payment"
	"github.com/cardforge/cardforge/internal/settings"
	"github.com/cardforge/cardforge/internal/sms"
	"github.com/cardforge/cardforge/internal/subscription"
)

// Deps are the shared services handlers are built from.
type Deps struct {
	Cfg           *config.Config
	DB            *gorm.DB
	Validator     *validator.Validate
	Auth          *auth.Service
	Local         *auth.LocalProvider
	Tokens        *auth.TokenService // nil when API tokens are not configured
	OIDC          *auth.OIDCManager
	States        *auth.StateStore
	Settings      *settings.Store
	SMS           *sms.Manager
	OTP           *otp.Manager
	Payments      *payment.Service
	Subscriptions *subscription.Checker
}

// Valid reports whether the dependencies every handler needs are set.
func (d *Deps) Valid() bool {
	return d != nil && d.Cfg != nil && d.DB != nil && d.Validator != nil && d.Auth != nil
}

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, deps *Deps) error
}
