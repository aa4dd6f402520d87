package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/corvid-labs/facegate/internal/auth/face"
	httpapi "github.com/corvid-labs/facegate/internal/auth/http"
	"github.com/corvid-labs/facegate/internal/auth/mail"
	"github.com/corvid-labs/facegate/internal/auth/service"
	"github.com/corvid-labs/facegate/internal/auth/session"
	memorydriver "github.com/corvid-labs/facegate/internal/auth/session/drivers/memory"
	redisdriver "github.com/corvid-labs/facegate/internal/auth/session/drivers/redis"
	"github.com/corvid-labs/facegate/internal/auth/store"
	"github.com/corvid-labs/facegate/internal/auth/store/drivers/sqlite"
	"github.com/corvid-labs/facegate/pkg/cryptox"
	"github.com/corvid-labs/facegate/pkg/jwtx"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the facegate service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	tracker session.Tracker
	signer  *jwtx.EdDSASigner

	loginService        *service.LoginService
	registerService     *service.RegisterService
	faceService         *service.FaceService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "facegate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initTracker(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	// Session tokens are signed with an ephemeral key: a restart revokes
	// everything, which matches the tracker losing its memory records.
	signer, err := jwtx.NewEphemeralSigner("facegate-" + BuildVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing key: %w", err)
	}
	app.signer = signer

	if err := service.SeedRoles(context.Background(), app.db); err != nil {
		return nil, fmt.Errorf("failed to seed roles: %w", err)
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("facegate starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down facegate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.tracker.Close(); err != nil {
		app.logger.Error("error closing tracker", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("facegate stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initTracker() error {
	switch app.cfg.TrackerDriver {
	case "", "memory":
		app.tracker = memorydriver.New()
		app.logger.Info("using in-memory attempt tracker")
	case "redis":
		if app.cfg.RedisAddr == "" {
			return fmt.Errorf("FACEGATE_REDIS_ADDR is required for the redis tracker")
		}
		client := goredis.NewClient(&goredis.Options{Addr: app.cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis unreachable: %w", err)
		}
		app.tracker = redisdriver.New(client)
		app.logger.Info("using redis attempt tracker", "addr", app.cfg.RedisAddr)
	default:
		return fmt.Errorf("unknown tracker driver %q", app.cfg.TrackerDriver)
	}
	return nil
}

func (app *Application) initServices() {
	var emailDispatcher mail.Dispatcher
	if app.cfg.SMTPAddr != "" {
		emailDispatcher = mail.NewSMTPDispatcher(
			app.cfg.SMTPAddr, app.cfg.SMTPFrom,
			app.cfg.SMTPUsername, app.cfg.SMTPPassword,
		)
	} else {
		emailDispatcher = mail.NewLogDispatcher(app.logger, "email")
		app.logger.Warn("no SMTP relay configured, email codes go to the log")
	}

	// There is no SMS gateway integration yet, so texted codes always go
	// through the log dispatcher.
	smsDispatcher := mail.NewLogDispatcher(app.logger, "sms")

	app.loginService = &service.LoginService{
		Store:      app.db,
		Tracker:    app.tracker,
		Signer:     app.signer,
		Issuer:     app.cfg.Issuer,
		SessionTTL: app.cfg.SessionTTL,
		Email:      emailDispatcher,
		SMS:        smsDispatcher,
	}

	var extractor face.Extractor
	if app.cfg.FaceExtractorURL != "" {
		extractor = face.NewHTTPExtractor(app.cfg.FaceExtractorURL)
		app.faceService = &service.FaceService{
			Store:     app.db,
			Tracker:   app.tracker,
			Extractor: extractor,
		}
	} else {
		app.logger.Warn("no face extractor configured, biometric endpoints disabled")
	}

	app.registerService = &service.RegisterService{
		Store:     app.db,
		Issuer:    app.cfg.Issuer,
		Extractor: extractor,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.tracker,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	verifier := jwtx.NewVerifierEdDSA(app.signer.KID(), app.signer.Public(), app.cfg.Issuer)

	router := httpapi.NewRouter(
		verifier,
		BuildVersion,
		app.db,
		app.tracker,
		app.logger,
	)

	router.LoginService = app.loginService
	router.RegisterService = app.registerService
	router.FaceService = app.faceService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
