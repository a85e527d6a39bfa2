package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/config"
	fiberlogger "github.com/cardforge/cardforge/internal/logger/adapter/fiber"
	"github.com/cardforge/cardforge/internal/web/handler"
	adminlanguage "github.com/cardforge/cardforge/internal/web/handler/admin/language"
	adminpayment "github.com/cardforge/cardforge/internal/web/handler/admin/payment"
	adminplan "github.com/cardforge/cardforge/internal/web/handler/admin/plan"
	adminsettings "github.com/cardforge/cardforge/internal/web/handler/admin/settings"
	admintheme "github.com/cardforge/cardforge/internal/web/handler/admin/theme"
	admintranslation "github.com/cardforge/cardforge/internal/web/handler/admin/translation"
	adminuser "github.com/cardforge/cardforge/internal/web/handler/admin/user"
	"github.com/cardforge/cardforge/internal/web/handler/api/account"
	"github.com/cardforge/cardforge/internal/web/handler/api/card"
	apiotp "github.com/cardforge/cardforge/internal/web/handler/api/otp"
	apipayment "github.com/cardforge/cardforge/internal/web/handler/api/payment"
	apiplan "github.com/cardforge/cardforge/internal/web/handler/api/plan"
	apitheme "github.com/cardforge/cardforge/internal/web/handler/api/theme"
	oidchandler "github.com/cardforge/cardforge/internal/web/handler/auth/oidc"
	"github.com/cardforge/cardforge/internal/web/handler/login"
	"github.com/cardforge/cardforge/internal/web/handler/logout"
	"github.com/cardforge/cardforge/internal/web/session"
)

const (
	// CheckAlivePath answers load balancer health checks.
	CheckAlivePath = "/checkalive"
	// MetricsPath exposes the prometheus metrics.
	MetricsPath = "/metrics"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for SIGINT or SIGTERM and stops the server gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// CheckAlive answers 200 while the service accepts traffic.
func (s *Service) CheckAlive(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.SendString("OK")
}

// handlers lists every route group in registration order.
func handlers() []handler.Service {
	return []handler.Service{
		&login.Handler,
		&logout.Handler,
		&oidchandler.Handler,
		&account.Handler,
		&card.Handler,
		&apitheme.Handler,
		&apiplan.Handler,
		&apipayment.Handler,
		&apiotp.Handler,
		&adminsettings.Handler,
		&adminlanguage.Handler,
		&adminplan.Handler,
		&admintranslation.Handler,
		&admintheme.Handler,
		&adminuser.Handler,
		&adminpayment.Handler,
	}
}

// New creates the web service and registers all handlers. The session store must be initialized.
func New(deps *handler.Deps) (*Service, error) {
	if !deps.Valid() {
		return nil, errors.New(handler.ErrNilACDFatalLogMsg)
	}

	if session.Store == nil {
		return nil, session.ErrNoSession
	}

	cfg := deps.Cfg

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			ErrorHandler:   handler.ErrorHandler(cfg),
		},
	)

	service := &Service{
		cfg:          cfg,
		App:          app,
		fastShutDown: cfg.DevMode,
	}
	service.alive.Store(true)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New(recover.Config{EnableStackTrace: cfg.DevMode}))
	}

	app.Use(requestid.New(requestid.Config{ContextKey: fiberlogger.LocalsRequestID}))
	app.Use(fiberlogger.New(fiberlogger.Config{Config: cfg.Log, CheckAliveURI: CheckAlivePath}))

	if cfg.Webserver.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Webserver.AllowOrigins,
			AllowCredentials: true,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		}))
	}

	if cfg.Webserver.CookieEncryptionKey != "" {
		app.Use(encryptcookie.New(encryptcookie.Config{Key: cfg.Webserver.CookieEncryptionKey}))
	}

	app.Get(CheckAlivePath, service.CheckAlive)
	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	app.Use(auth.Middleware(deps.Auth, deps.Tokens))
	app.Use(auth.AddPermissionsToLocals(deps.Auth))

	for _, h := range handlers() {
		if err := h.Init(app, deps); err != nil {
			return nil, err
		}
	}

	return service, nil
}
