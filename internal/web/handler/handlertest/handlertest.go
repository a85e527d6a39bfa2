// Package handlertest builds a fiber app on an in-memory database for handler tests.
package handlertest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/db/seed"
	"github.com/cardforge/cardforge/internal/otp"
	"github.com/cardforge/cardforge/internal/payment"
	"github.com/cardforge/cardforge/internal/settings"
	"github.com/cardforge/cardforge/internal/sms"
	"github.com/cardforge/cardforge/internal/subscription"
	"github.com/cardforge/cardforge/internal/web/handler"
	"github.com/cardforge/cardforge/internal/web/session"
)

// Password is the password of every user created by Env.User.
const Password = "password123"

// Env is a running test application.
type Env struct {
	t      *testing.T
	DB     *gorm.DB
	Cfg    *config.Config
	Deps   *handler.Deps
	App    *fiber.App
	Driver *Driver
}

// New returns an app with the given handlers on a freshly seeded database.
func New(t *testing.T, services ...handler.Service) *Env {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))
	require.NoError(t, seed.RBAC(db))
	require.NoError(t, seed.Languages(db))
	require.NoError(t, seed.Themes(db))
	require.NoError(t, seed.Plans(db))
	require.NoError(t, seed.Settings(t.Context(), db))

	storage, err := session.NewGormStorage(db)
	require.NoError(t, err)
	session.Init(storage)

	cfg := &config.Config{
		Title: "CardForge",
		Webserver: config.Webserver{
			URL:     "http://localhost:8080",
			Session: config.Session{ExpiryTime: time.Hour},
			JWT:     config.JWT{Secret: "test-secret", ExpiryTime: time.Hour, Issuer: "cardforge"},
		},
		OTP: config.OTP{
			Length:        6,
			TTL:           5 * time.Minute,
			Cooldown:      time.Minute,
			MaxAttempts:   5,
			DefaultLocale: "en",
		},
	}

	tokens, err := auth.NewTokenService(cfg.Webserver.JWT)
	require.NoError(t, err)

	driver := NewDriver()
	checker := subscription.NewChecker(db)

	registry := payment.NewRegistry()
	registry.Register(DriverName, func(settings.Payment, config.Payment) (payment.Driver, error) {
		return driver, nil
	})

	payments := payment.NewService(db, registry, cfg.Payment, nil, checker)
	payments.Rebuild(settings.Payment{Gateway: DriverName, Currency: "SAR"})

	smsManager := sms.NewManager(sms.LogName, sms.NewLog())

	authService := auth.NewService(db)
	deps := &handler.Deps{
		Cfg:           cfg,
		DB:            db,
		Validator:     handler.NewValidator(),
		Auth:          authService,
		Local:         auth.NewLocalProvider(db),
		Tokens:        tokens,
		OIDC:          auth.NewOIDCManager(db, "", cfg.Webserver.URL),
		States:        auth.NewStateStore(),
		Settings:      settings.NewStore(db),
		SMS:           smsManager,
		OTP:           otp.NewManager(db, smsManager, cfg.OTP, cfg.Title),
		Payments:      payments,
		Subscriptions: checker,
	}

	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler(cfg)})
	app.Use(auth.Middleware(authService, tokens))

	for _, s := range services {
		require.NoError(t, s.Init(app, deps))
	}

	return &Env{t: t, DB: db, Cfg: cfg, Deps: deps, App: app, Driver: driver}
}

// User creates an active local user with role.
func (e *Env) User(username, role string) *models.User {
	e.t.Helper()

	roleID, err := e.Deps.Auth.RoleID(role)
	require.NoError(e.t, err)

	user, err := e.Deps.Local.CreateUser(username, username+"@example.com", Password, "", "", roleID)
	require.NoError(e.t, err)

	return user
}

// Do sends a JSON request, authenticated with an API token when user is set.
func (e *Env) Do(user *models.User, method, target string, body any) *http.Response {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)

	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	if user != nil {
		token, _, err := e.Deps.Tokens.Issue(user)
		require.NoError(e.t, err)

		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	return e.Send(req)
}

// Send runs req against the app.
func (e *Env) Send(req *http.Request) *http.Response {
	e.t.Helper()

	resp, err := e.App.Test(req, -1)
	require.NoError(e.t, err)

	e.t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

// Decode reads a JSON body into T.
func Decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

// DriverName is the gateway name of Driver.
const DriverName = "test"

// Driver is a payment driver answering from memory. Charges get Status, the zero value confirms.
// A set ChargeErr is returned by Charge after the charge was created, as a dropped connection would.
type Driver struct {
	mu        sync.Mutex
	Status    models.PaymentStatus
	ChargeErr error
	charges   map[string]payment.Charge
	Refunds   []int64
}

// NewDriver returns a driver confirming every charge.
func NewDriver() *Driver {
	return &Driver{charges: make(map[string]payment.Charge)}
}

// Name implements payment.Driver.
func (d *Driver) Name() string { return DriverName }

// Recurring implements payment.Driver.
func (d *Driver) Recurring() bool { return false }

// Charge implements payment.Driver.
func (d *Driver) Charge(_ context.Context, p *models.Payment) (*payment.Charge, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := d.Status
	if status == "" {
		status = models.PaymentConfirmed
	}

	c := payment.Charge{
		Reference: fmt.Sprintf("ch_%d", len(d.charges)+1),
		PaymentID: p.UUID,
		Status:    status,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Raw:       string(status),
	}

	if status == models.PaymentProcessing {
		c.RedirectURL = "https://pay.example.com/3ds/" + c.Reference
	}

	d.charges[c.Reference] = c

	if d.ChargeErr != nil {
		return nil, d.ChargeErr
	}

	return &c, nil
}

// Lookup implements payment.Driver.
func (d *Driver) Lookup(_ context.Context, paymentID string) (*payment.Charge, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range d.charges {
		if c.PaymentID == paymentID {
			return &c, nil
		}
	}

	return nil, payment.ErrPaymentNotFound
}

// Fetch implements payment.Driver.
func (d *Driver) Fetch(_ context.Context, reference string) (*payment.Charge, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.charges[reference]
	if !ok {
		return nil, fmt.Errorf("charge %s not found", reference)
	}

	return &c, nil
}

// Refund implements payment.Driver.
func (d *Driver) Refund(_ context.Context, _ string, amount int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Refunds = append(d.Refunds, amount)

	return nil
}

// Settle marks a charge as captured at the provider, as a completed 3-D Secure step would.
func (d *Driver) Settle(reference string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.charges[reference]
	c.Status = models.PaymentConfirmed
	c.Raw = string(models.PaymentConfirmed)
	d.charges[reference] = c
}
