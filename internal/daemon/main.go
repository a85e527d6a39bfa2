// Package daemon wires configuration, database, services and the web service together.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/db/dsn"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/db/seed"
	"github.com/cardforge/cardforge/internal/otp"
	"github.com/cardforge/cardforge/internal/payment"
	"github.com/cardforge/cardforge/internal/payment/audit"
	"github.com/cardforge/cardforge/internal/payment/gateways"
	"github.com/cardforge/cardforge/internal/settings"
	"github.com/cardforge/cardforge/internal/sms"
	"github.com/cardforge/cardforge/internal/subscription"
	"github.com/cardforge/cardforge/internal/web"
	"github.com/cardforge/cardforge/internal/web/handler"
	"github.com/cardforge/cardforge/internal/web/session"
)

const sessionTable = "sessions"

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
	cancel     context.CancelFunc
}

// Start runs the web service until a shutdown signal arrives.
func (d *Daemon) Start() error {
	go func() {
		d.webService.WaitShutdown()
		d.cancel()
	}()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// OpenDatabase connects to the configured engine.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case config.EnginePostgres:
		dialector = gormpostgres.Open(dsn.Create(cfg))
	case config.EngineSQLite:
		dialector = sqlite.Open(dsn.Create(cfg))
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	level := gormlogger.Warn
	if cfg.DevMode {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.DB.GormEngine == config.EngineSQLite {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}

		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// Migrate creates or updates the schema of every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Seed adds the data a fresh installation needs.
func Seed(cfg *config.Config, db *gorm.DB) error {
	return seed.Run(context.Background(), db, cfg.Admin)
}

// sessionStorage picks the session backend matching the database engine.
func sessionStorage(cfg *config.Config, db *gorm.DB) (fiber.Storage, error) {
	switch cfg.DB.GormEngine {
	case config.EngineMySQL:
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.MySQL(cfg.DB),
			Table:         sessionTable,
		}), nil
	case config.EnginePostgres:
		return sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.PostgresURI(cfg.DB),
			Table:         sessionTable,
		}), nil
	}

	return session.NewGormStorage(db)
}

// New opens the database, seeds it and builds every service behind the web service.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if err = Migrate(db); err != nil {
		return nil, err
	}

	if err = Seed(cfg, db); err != nil {
		return nil, err
	}

	storage, err := sessionStorage(cfg, db)
	if err != nil {
		return nil, err
	}

	session.Init(storage)

	ctx, cancel := context.WithCancel(context.Background())

	deps, err := buildDeps(ctx, cfg, db)
	if err != nil {
		cancel()
		return nil, err
	}

	if gs, ok := storage.(*session.GormStorage); ok {
		go collectSessions(ctx, gs)
	}

	go deps.States.Janitor(ctx)

	webService, err := web.New(deps)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Daemon{cfg: cfg, webService: webService, cancel: cancel}, nil
}

func buildDeps(ctx context.Context, cfg *config.Config, db *gorm.DB) (*handler.Deps, error) {
	store := settings.NewStore(db)
	if err := store.Warm(ctx); err != nil {
		return nil, err
	}

	general, err := store.General(ctx)
	if err != nil {
		return nil, err
	}

	authSettings, err := store.Auth(ctx)
	if err != nil {
		return nil, err
	}

	paymentSettings, err := store.Payment(ctx)
	if err != nil {
		return nil, err
	}

	smsManager, err := sms.NewFromConfig(cfg.SMS)
	if err != nil {
		return nil, err
	}

	if err := smsManager.SetDefault(authSettings.DefaultSMSProvider); err != nil {
		log.Warn().Err(err).Msg("sms provider of the auth settings not available, keeping the configured one")
	}

	store.OnSave(settings.GroupAuth, func(_ context.Context, g settings.Group) {
		a, ok := g.(settings.Auth)
		if !ok {
			return
		}

		if err := smsManager.SetDefault(a.DefaultSMSProvider); err != nil {
			log.Warn().Err(err).Msg("failed to switch the default sms provider")
		}
	})

	oidc := auth.NewOIDCManager(db, "", cfg.Webserver.URL)
	if err := oidc.Configure(ctx, authSettings); err != nil {
		log.Warn().Err(err).Msg("google sign-in disabled, provider could not be configured")
	}

	store.OnSave(settings.GroupAuth, oidc.OnSettingsSaved)

	auditor, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, err
	}

	checker := subscription.NewChecker(db)

	payments := payment.NewService(db, gateways.NewRegistry(), cfg.Payment, auditor, checker)
	payments.Rebuild(paymentSettings)
	store.OnSave(settings.GroupPayment, payments.OnSettingsSaved)

	appName := general.SiteName
	if appName == "" {
		appName = cfg.Title
	}

	deps := &handler.Deps{
		Cfg:           cfg,
		DB:            db,
		Validator:     handler.NewValidator(),
		Auth:          auth.NewService(db),
		Local:         auth.NewLocalProvider(db),
		OIDC:          oidc,
		States:        auth.NewStateStore(),
		Settings:      store,
		SMS:           smsManager,
		OTP:           otp.NewManager(db, smsManager, cfg.OTP, appName),
		Payments:      payments,
		Subscriptions: checker,
	}

	if cfg.Webserver.JWT.Secret != "" {
		tokens, err := auth.NewTokenService(cfg.Webserver.JWT)
		if err != nil {
			return nil, err
		}

		deps.Tokens = tokens
	} else {
		log.Info().Msg("api tokens disabled, no jwt secret configured")
	}

	return deps, nil
}

// collectSessions drops expired sessions every ten minutes until ctx is done.
func collectSessions(ctx context.Context, s *session.GormStorage) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.GC(); err != nil {
				log.Warn().Err(err).Msg("session cleanup failed")
			}
		}
	}
}
