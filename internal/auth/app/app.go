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

	"github.com/activitymaster/clubauth/internal/auth/audit"
	httpapi "github.com/activitymaster/clubauth/internal/auth/http"
	"github.com/activitymaster/clubauth/internal/auth/keys"
	"github.com/activitymaster/clubauth/internal/auth/mail"
	"github.com/activitymaster/clubauth/internal/auth/service"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/internal/auth/store/drivers/sqlite"
	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/activitymaster/clubauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db   store.Store
	keys *keys.KeyStore
	sink *audit.Sink

	// Services
	tokenService        *service.TokenService
	authService         *service.AuthService
	userService         *service.UserService
	twoFactorService    *service.TwoFactorService
	clubService         *service.ClubService
	rbacService         *service.RBACService
	verificationService *service.VerificationService
	keyRotationService  *service.KeyRotationService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "clubauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	ks, err := keys.Open(app.cfg.KeyDir, app.cfg.DevMode())
	if err != nil {
		return nil, fmt.Errorf("failed to open key material: %w", err)
	}
	app.keys = ks

	app.initServices()

	// The permission catalog must exist before the first club is created.
	if err := app.clubService.EnsurePermissionCatalog(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to seed permission catalog: %w", err)
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.sink.Start()
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

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
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	// Stop the sink after the server so in-flight requests can still log.
	app.sink.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	// modernc.org/sqlite takes pragmas as _pragma=name(value); the
	// mattn-style _busy_timeout/_journal_mode params are silently ignored.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
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

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.sink = audit.NewSink(app.db, app.logger, app.cfg.AuditBuffer)

	mailer := mail.LogMailer{}

	app.tokenService = &service.TokenService{
		Keys:   app.keys,
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}
	app.twoFactorService = &service.TwoFactorService{
		Keys:   app.keys,
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}
	app.authService = &service.AuthService{
		Store:         app.db,
		Tokens:        app.tokenService,
		TwoFactor:     app.twoFactorService,
		Keys:          app.keys,
		Sink:          app.sink,
		Mailer:        mailer,
		PublicBaseURL: app.cfg.PublicBaseURL,
	}
	app.userService = &service.UserService{
		Store:         app.db,
		Tokens:        app.tokenService,
		Keys:          app.keys,
		Sink:          app.sink,
		Mailer:        mailer,
		PublicBaseURL: app.cfg.PublicBaseURL,
	}

	app.rbacService = service.NewRBACService(app.db)
	app.clubService = &service.ClubService{
		Store: app.db,
		RBAC:  app.rbacService,
		Sink:  app.sink,
	}
	app.verificationService = &service.VerificationService{
		Store: app.db,
		Keys:  app.keys,
		Sink:  app.sink,
	}
	app.keyRotationService = &service.KeyRotationService{
		Store: app.db,
		Keys:  app.keys,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.TokenService = app.tokenService
	router.AuthService = app.authService
	router.UserService = app.userService
	router.TwoFactorService = app.twoFactorService
	router.ClubService = app.clubService
	router.RBACService = app.rbacService
	router.VerificationService = app.verificationService
	router.KeyRotationService = app.keyRotationService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
