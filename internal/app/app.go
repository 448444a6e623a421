// Package app assembles the Stockwarden components from configuration.
// The server, the admin CLI and the migration tool share this wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/alert"
	"github.com/prn-tf/stockwarden/internal/auth"
	cachememory "github.com/prn-tf/stockwarden/internal/cache/memory"
	cacheredis "github.com/prn-tf/stockwarden/internal/cache/redis"
	"github.com/prn-tf/stockwarden/internal/catalog"
	"github.com/prn-tf/stockwarden/internal/config"
	"github.com/prn-tf/stockwarden/internal/handler"
	"github.com/prn-tf/stockwarden/internal/lock"
	"github.com/prn-tf/stockwarden/internal/metrics"
	"github.com/prn-tf/stockwarden/internal/notify"
	"github.com/prn-tf/stockwarden/internal/repository"
	"github.com/prn-tf/stockwarden/internal/repository/memory"
	"github.com/prn-tf/stockwarden/internal/repository/postgres"
	"github.com/prn-tf/stockwarden/internal/repository/sqlite"
	"github.com/prn-tf/stockwarden/internal/service"
	"github.com/prn-tf/stockwarden/internal/storage"
)

// redisKeyPrefix namespaces every key the server writes to Redis.
const redisKeyPrefix = "stockwarden:"

// App holds the wired components of one process.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// Database is nil for the memory driver.
	Database repository.Database
	Repos    repository.Repositories
	Cache    repository.Cache
	Locker   lock.Locker
	Notifier notify.Notifier
	Archive  storage.Archive
	Metrics  *metrics.Metrics

	Store         *catalog.Store
	Alerts        *alert.Engine
	Authenticator *auth.Authenticator
	Tokens        *auth.TokenIssuer
	Inventory     *service.InventoryService
	Checkpoints   *service.CheckpointService
	Reports       *service.ReportService
	Users         *service.UserService

	started bool
	closers []func() error
}

// OpenDatabase connects the configured driver and returns its repositories.
// The returned Database is nil for the memory driver. Migrations are not applied.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (repository.Database, repository.Repositories, error) {
	switch cfg.Driver {
	case "memory":
		return nil, repository.Repositories{
			User:    memory.NewUserRepository(),
			Product: memory.NewProductRepository(),
		}, nil

	case "sqlite", "":
		db, err := sqlite.NewDB(ctx, sqlite.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, repository.Repositories{}, err
		}
		return db, repository.Repositories{
			User:    sqlite.NewUserRepository(db),
			Product: sqlite.NewProductRepository(db),
		}, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, repository.Repositories{}, err
		}
		return db, repository.Repositories{
			User:    postgres.NewUserRepository(db),
			Product: postgres.NewProductRepository(db),
		}, nil
	}
	return nil, repository.Repositories{}, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// New wires every component. The database schema is migrated before use.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.closeResources()
		}
	}()

	db, repos, err := OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.Database, a.Repos = db, repos
	if db != nil {
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	if err := a.openCache(ctx); err != nil {
		return nil, err
	}
	if err := a.openNotifier(); err != nil {
		return nil, err
	}

	a.Archive, err = storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open report archive: %w", err)
	}

	a.Metrics = metrics.New()
	a.Alerts, err = alert.NewEngine(alert.Policy{
		Threshold:   cfg.Alerts.Threshold,
		Cooldown:    cfg.Alerts.Cooldown,
		Recipient:   cfg.Alerts.Recipient,
		SendTimeout: cfg.Alerts.SendTimeout,
	}, a.Cache, a.Notifier, a.Metrics, logger)
	if err != nil {
		return nil, err
	}

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	otp := auth.NewOTPService(a.Cache, cfg.Auth.OTPTTL, cfg.Auth.OTPMaxAttempts, logger)
	a.Authenticator = auth.NewAuthenticator(a.Repos.User, hasher, otp, a.Notifier, cfg.Auth.VerificationTTL, a.Metrics, logger)
	a.Tokens = auth.NewTokenIssuer(auth.TokenConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		Issuer:     cfg.Auth.Issuer,
		PendingTTL: cfg.Auth.PendingTokenTTL,
		SessionTTL: cfg.Auth.SessionTokenTTL,
	}, a.Cache)

	a.Store = catalog.NewStore()
	a.Inventory = service.NewInventoryService(a.Store, a.Alerts, a.Metrics, logger)
	a.Checkpoints = service.NewCheckpointService(a.Store, a.Repos.Product, a.Locker, a.Metrics, logger, service.CheckpointConfig{
		Interval:     cfg.Checkpoint.Interval,
		CSVPath:      cfg.Checkpoint.CSVPath,
		SeedDefaults: cfg.Checkpoint.SeedDefaults,
		LockTTL:      cfg.Checkpoint.LockTTL,
	})
	a.Reports = service.NewReportService(a.Store, a.Archive, a.Notifier, a.Locker, logger, service.ReportConfig{
		WorkDir:          cfg.Storage.TempDir,
		DefaultRecipient: cfg.Alerts.Recipient,
	})
	a.Users = service.NewUserService(a.Repos.User, hasher, logger)

	return a, nil
}

func (a *App) openCache(ctx context.Context) error {
	if !a.Config.Redis.Enabled {
		c := cachememory.NewCache()
		a.closers = append(a.closers, func() error { c.Stop(); return nil })
		a.Cache = c
		a.Locker = lock.NewMemoryLocker()
		return nil
	}

	client, err := cacheredis.NewClient(ctx, a.Config.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.Cache = cacheredis.NewCache(client, redisKeyPrefix)
	a.Locker = lock.NewRedisLocker(client)

	a.Logger.Info().Str("addr", a.Config.Redis.Addr()).Msg("using redis for cache and locks")
	return nil
}

func (a *App) openNotifier() error {
	cfg := a.Config.Notifier
	switch cfg.Driver {
	case "log", "":
		a.Notifier = notify.NewLogNotifier(a.Logger)
	case "smtp":
		a.Notifier = notify.NewSMTPNotifier(cfg.SMTP, cfg.From)
	case "amqp":
		n, err := notify.NewAMQPNotifier(cfg.AMQP, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to message broker: %w", err)
		}
		a.closers = append(a.closers, n.Close)
		a.Notifier = n
	default:
		return fmt.Errorf("unknown notifier driver %q", cfg.Driver)
	}
	return nil
}

// Start hydrates the catalog, creates the bootstrap admin and starts the
// checkpoint scheduler when enabled.
func (a *App) Start(ctx context.Context) error {
	result, err := a.Checkpoints.Hydrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to hydrate catalog: %w", err)
	}
	a.Logger.Info().
		Str("source", result.Source).
		Int("loaded", result.Loaded).
		Int("skipped", result.Skipped).
		Msg("catalog hydrated")

	if boot := a.Config.Bootstrap; boot.Enabled() {
		created, err := a.Users.EnsureAdmin(ctx, boot.AdminName, boot.AdminEmail, boot.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to create bootstrap admin: %w", err)
		}
		if created {
			a.Logger.Info().Str("email", boot.AdminEmail).Msg("bootstrap admin created")
		}
	}

	a.started = true
	if a.Config.Checkpoint.Enabled {
		a.Checkpoints.Start()
	}
	return nil
}

// Router builds the HTTP router over the wired services.
func (a *App) Router() *handler.Router {
	cfg := handler.RouterConfig{
		AuthHandler:       handler.NewAuthHandler(a.Authenticator, a.Tokens, a.Logger),
		ProductHandler:    handler.NewProductHandler(a.Inventory, a.Logger),
		ReportHandler:     handler.NewReportHandler(a.Inventory, a.Reports, a.Logger),
		UserHandler:       handler.NewUserHandler(a.Users, a.Logger),
		Authenticator:     a.Authenticator,
		Tokens:            a.Tokens,
		RequestTimeout:    a.Config.Server.WriteTimeout,
		MaxBodySize:       a.Config.Server.MaxBodySize,
		TrustProxyHeaders: a.Config.Server.TrustProxyHeaders,
		Logger:            a.Logger,
	}
	if a.Database != nil {
		cfg.Database = a.Database
	}
	if a.Config.Metrics.Enabled {
		cfg.Metrics = a.Metrics.Handler()
		cfg.MetricsPath = a.Config.Metrics.Path
	}
	if a.Config.RateLimit.Enabled {
		cfg.RateLimiter = handler.NewRateLimiter(a.Config.RateLimit)
	}
	return handler.NewRouter(cfg)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// within the configured timeout.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.Config.Server.Addr(),
		Handler:      a.Router().Handler(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}

// Close releases every connection. After Start it first stops the
// checkpoint scheduler and flushes the catalog one last time.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var errs []error
	if a.started {
		a.started = false
		if result := a.Checkpoints.Stop(ctx); result.Err != nil {
			errs = append(errs, fmt.Errorf("final checkpoint: %w", result.Err))
		}
	}
	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) shutdownTimeout() time.Duration {
	if t := a.Config.Server.ShutdownTimeout; t > 0 {
		return t
	}
	return 30 * time.Second
}
