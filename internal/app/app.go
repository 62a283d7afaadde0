package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pixelrelay/pixelrelay-cloud/internal/adapter/provider/facebook"
	"github.com/pixelrelay/pixelrelay-cloud/internal/adapter/repository/postgres"
	"github.com/pixelrelay/pixelrelay-cloud/internal/api"
	"github.com/pixelrelay/pixelrelay-cloud/internal/config"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/apikey"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/delivery"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/dispatch"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/source"
	"github.com/pixelrelay/pixelrelay-cloud/internal/ingest"
	"github.com/pixelrelay/pixelrelay-cloud/internal/worker"
	"github.com/pixelrelay/pixelrelay-cloud/pkg/db"
	zaplog "github.com/pixelrelay/pixelrelay-cloud/pkg/log"
	"github.com/pixelrelay/pixelrelay-cloud/pkg/snowflake"
	"github.com/pixelrelay/pixelrelay-cloud/sql/migrations"
)

func options() fx.Option {
	return fx.Options(
		fx.Provide(
			// Config
			config.Load,

			// Persistence (Bind Interfaces)
			fx.Annotate(
				postgres.NewStore,
				fx.As(new(ingest.EventStore)),
				fx.As(new(event.Repository)),
				fx.As(new(delivery.Repository)),
				fx.As(new(source.Repository)),
				fx.As(new(destination.Repository)),
				fx.As(new(apikey.Repository)),
			),

			// Destination Adapters
			newFacebookConfig,
			facebook.NewAdapter,
			newDispatchRegistry,

			// Services
			ingest.NewService,
			worker.NewWorker,

			// API
			api.NewRouter,
		),
		db.Module,        // Database Module
		snowflake.Module, // Snowflake ID Module
		zaplog.Module,    // Logger Module
	)
}

// RunServer starts the HTTP server.
func RunServer() {
	app := fx.New(
		options(),
		fx.Invoke(registerHooks),
	)

	app.Run()
}

// RunDeliveryPass runs a single delivery pass and exits. It shares the full
// dependency graph with the server so CLI-triggered passes behave identically
// to endpoint-triggered ones.
func RunDeliveryPass(limit int) error {
	var runErr error

	app := fx.New(
		options(),
		fx.Invoke(func(cfg *config.Config, w *worker.Worker, logger *zap.Logger) {
			if limit <= 0 {
				limit = cfg.WorkerBatchLimit
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			processed, err := w.ProcessPending(ctx, limit)
			if err != nil {
				runErr = err
				return
			}
			logger.Info("delivery_pass_complete", zap.Int("processed", processed))
		}),
	)

	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}

	return runErr
}

// RunMigrations executes database migrations (up or down).
func RunMigrations(command string) error {
	if command == "" {
		command = "up"
	}

	cfg := config.Load()
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting database migration...", zap.String("command", command))

	dbURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBSSLMode,
	)

	d, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migration files: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, dbURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Info("Migration up applied")
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("Migration down applied")
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}

	return nil
}

func registerHooks(lc fx.Lifecycle, router *api.Router, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting HTTP server", zap.String("port", cfg.Port))

			go func() {
				if err := router.Run(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Server failed to start", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server gracefully...")

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := router.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		},
	})
}

func newFacebookConfig(cfg *config.Config) facebook.Config {
	fc := facebook.DefaultConfig()
	if cfg.FacebookAPIBaseURL != "" {
		fc.BaseURL = cfg.FacebookAPIBaseURL
	}
	if cfg.FacebookTimeout > 0 {
		fc.Timeout = time.Duration(cfg.FacebookTimeout) * time.Second
	}
	if cfg.FacebookRateLimit > 0 {
		fc.RateLimit = rate.Limit(cfg.FacebookRateLimit)
	}
	if cfg.FacebookRateBurst > 0 {
		fc.RateBurst = cfg.FacebookRateBurst
	}
	return fc
}

func newDispatchRegistry(fb *facebook.Adapter) dispatch.Registry {
	return dispatch.Registry{
		destination.TypeFacebook: fb,
	}
}
