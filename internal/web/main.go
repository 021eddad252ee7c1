// Package web wires the Fiber application: global middleware, the JSON API
// route tree and the lifecycle (start, graceful drain, shutdown).
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
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nasuha-connect/nasuha-connect/internal/audit"
	"github.com/nasuha-connect/nasuha-connect/internal/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/config"
	fiberlogger "github.com/nasuha-connect/nasuha-connect/internal/logger/adapter/fiber"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler"
	authhandler "github.com/nasuha-connect/nasuha-connect/internal/web/handler/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler/auditlog"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler/category"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler/korda"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler/media"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler/permission"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler/role"
	"github.com/nasuha-connect/nasuha-connect/internal/web/handler/user"
	mwauth "github.com/nasuha-connect/nasuha-connect/internal/web/middleware/auth"
	"github.com/nasuha-connect/nasuha-connect/internal/web/response"
)

const checkAliveURI = "/health"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	recorder     *audit.Recorder
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

// WaitShutdown waits for graceful shutdown.
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

	// stop fiber http server
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

	// let in-flight audit writes land before the process exits
	log.Info().Msg("draining audit writes ...")
	s.recorder.Wait()

	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB, recorder *audit.Recorder) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	if recorder == nil {
		panic("recorder cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			ErrorHandler:   errorHandler,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	if cfg.Webserver.CORSOrigin != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.Webserver.CORSOrigin,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		}))
	}

	// access logging
	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: checkAliveURI,
	}))

	service := &Service{
		cfg:      cfg,
		App:      app,
		db:       db,
		recorder: recorder,
	}

	service.alive.Store(true)

	app.Get("/", service.banner)
	app.Get(checkAliveURI, service.checkAlive)

	authService := auth.NewService(db)
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)

	deps := &handler.Deps{
		Cfg:    cfg,
		DB:     db,
		Auth:   authService,
		Tokens: tokens,
		Audit:  recorder,
		Authn:  mwauth.New(authService, tokens),
	}

	// init handlers (they register their own routes with permission gates)
	api := app.Group("/api")
	authhandler.Handler.Init(api, deps)
	user.Handler.Init(api, deps)
	role.Handler.Init(api, deps)
	permission.Handler.Init(api, deps)
	korda.Handler.Init(api, deps)
	category.Handler.Init(api, deps)
	media.Handler.Init(api, deps)
	auditlog.Handler.Init(api, deps)

	// everything unmatched gets the envelope, not fiber's plain 404
	app.Use(func(c *fiber.Ctx) error {
		return response.Error(c, fiber.StatusNotFound,
			response.CodeNotFound, "Route not found")
	})

	return service
}

// banner identifies the service.
func (s *Service) banner(c *fiber.Ctx) error {
	return response.Success(c, fiber.Map{
		"name":   s.cfg.Title,
		"status": "running",
	})
}

// checkAlive reports liveness for load balancers. It degrades to 503 while
// draining and when the database stops answering.
func (s *Service) checkAlive(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return response.Error(c, fiber.StatusServiceUnavailable,
			response.CodeInternalError, "Shutting down")
	}

	var one int
	if err := s.db.Raw("SELECT 1").Scan(&one).Error; err != nil {
		log.Error().Err(err).Msg("health check database probe failed")

		return response.Error(c, fiber.StatusServiceUnavailable,
			response.CodeDatabaseError, "Database unreachable")
	}

	return response.Success(c, fiber.Map{"status": "healthy"})
}

// errorHandler renders uncaught handler errors in the envelope format.
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := response.CodeInternalError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		if status == fiber.StatusNotFound {
			code = response.CodeNotFound
		}
	}

	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled request error")
	}

	return response.Error(c, status, code, err.Error())
}
