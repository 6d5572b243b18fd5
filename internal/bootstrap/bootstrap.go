// Package bootstrap wires configuration into the running invoicing
// components shared by the server and the one-shot sync command.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	bookingapp "github.com/bicicare/invoicebridge/internal/application/booking"
	"github.com/bicicare/invoicebridge/internal/application/invoicing"
	"github.com/bicicare/invoicebridge/internal/infrastructure/booqable"
	"github.com/bicicare/invoicebridge/internal/infrastructure/cache"
	"github.com/bicicare/invoicebridge/internal/infrastructure/config"
	"github.com/bicicare/invoicebridge/internal/infrastructure/country"
	"github.com/bicicare/invoicebridge/internal/infrastructure/logger"
	"github.com/bicicare/invoicebridge/internal/infrastructure/persistence"
	"github.com/bicicare/invoicebridge/internal/infrastructure/reeleezee"
	"github.com/bicicare/invoicebridge/internal/infrastructure/scheduler"
	"github.com/bicicare/invoicebridge/internal/infrastructure/telemetry"
	"github.com/bicicare/invoicebridge/internal/interfaces/http/handler"
)

// App holds the wired components. Optional parts are nil when disabled.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Provider
	Database  *persistence.Database
	Lock      cache.Lock
	Metrics   *telemetry.InvoicingMetrics
	Sync      *invoicing.SyncService
	Trigger   *scheduler.DailyTrigger

	checkpoints *persistence.GormCheckpointRepository
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env)), nil
}

// New wires every component. On error, whatever was already opened is
// closed.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (app *App, err error) {
	app = &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	app.Telemetry, err = telemetry.New(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}, log.Named("telemetry"))
	if err != nil {
		return app, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	log = telemetry.BridgeLogger(log, app.Telemetry, zapcore.InfoLevel)
	app.Logger = log

	app.Metrics, err = telemetry.NewInvoicingMetrics(telemetry.InvoicingMetricsConfig{
		Meter:  app.Telemetry.Meter("invoicebridge"),
		Logger: log,
	})
	if err != nil {
		return app, err
	}

	if cfg.Database.Enabled {
		if err = app.openDatabase(); err != nil {
			return app, err
		}
	}

	lock, err := cache.NewOrderLockFactory(cache.RedisConfig{
		Host:      cfg.Redis.Host,
		Port:      cfg.Redis.Port,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	}, cfg.Redis.Enabled, cache.WithLogger(log.Named("cache"))).CreateLock()
	if err != nil {
		return app, err
	}
	app.Lock = lock

	source, err := booqable.NewAdapter(booqable.Config{
		BaseURL:        cfg.Booqable.BaseURL,
		APIKey:         cfg.Booqable.APIKey,
		TimeoutSeconds: cfg.Booqable.TimeoutSeconds,
		PageSize:       cfg.Booqable.PageSize,
		MaxPages:       cfg.Booqable.MaxPages,
	}, log)
	if err != nil {
		return app, fmt.Errorf("failed to create booqable adapter: %w", err)
	}

	accounting, err := reeleezee.NewAdapter(reeleezee.Config{
		BaseURL:        cfg.Reeleezee.BaseURL,
		Username:       cfg.Reeleezee.Username,
		Password:       cfg.Reeleezee.Password,
		AdminID:        cfg.Reeleezee.AdminID,
		ClientVersion:  cfg.Reeleezee.ClientVersion,
		TimeoutSeconds: cfg.Reeleezee.TimeoutSeconds,
		SearchLimit:    cfg.Reeleezee.SearchLimit,
	}, log)
	if err != nil {
		return app, fmt.Errorf("failed to create reeleezee adapter: %w", err)
	}

	sagaOpts := []invoicing.SagaOption{
		invoicing.WithOrderLock(app.Lock),
		invoicing.WithMetrics(app.Metrics),
		invoicing.WithLogger(log),
	}
	if app.checkpoints != nil {
		sagaOpts = append(sagaOpts, invoicing.WithCheckpoints(app.checkpoints))
	}
	saga := invoicing.NewInvoicingSaga(accounting, country.NewResolver(), invoicing.SagaConfig{
		HeaderPrefix:      cfg.Invoicing.HeaderPrefix,
		VATRate:           cfg.Invoicing.VATRate,
		PaymentTermDays:   cfg.Invoicing.PaymentTermDays,
		RevenueAccountID:  cfg.Invoicing.RevenueAccountID,
		TaxRateID:         cfg.Invoicing.TaxRateID,
		FinalizeEnabled:   cfg.Invoicing.FinalizeEnabled,
		StrictLinePairing: cfg.Invoicing.StrictLinePairing,
		ExactMatch:        cfg.Invoicing.ExactMatch,
		LockTTL:           cfg.Invoicing.LockTTL,
	}, sagaOpts...)

	transformer := bookingapp.NewOrderToBookingTransformer(bookingapp.NewOrderGraphResolver())
	selector := bookingapp.NewPaidOrderSelector(source, transformer, log)
	app.Sync = invoicing.NewSyncService(selector, saga, cfg.Invoicing.Concurrency, app.Metrics, log)

	triggerOpts := []scheduler.Option{}
	if app.checkpoints != nil {
		triggerOpts = append(triggerOpts, scheduler.WithPruner(app.checkpoints))
	}
	app.Trigger, err = scheduler.NewDailyTrigger(scheduler.DailyTriggerConfig{
		RunHour:             cfg.Scheduler.RunHour,
		CheckInterval:       cfg.Scheduler.CheckInterval,
		JobTimeout:          cfg.Scheduler.JobTimeout,
		CheckpointRetention: cfg.Scheduler.CheckpointRetention,
	}, app.Sync, log, triggerOpts...)
	if err != nil {
		return app, err
	}

	return app, nil
}

func (a *App) openDatabase() error {
	cfg := a.Config
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithZapLogger(a.Logger, cfg.Log.Level))
	if err != nil {
		return err
	}
	a.Database = db
	a.Logger.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("dbname", cfg.Database.DBName),
	)

	if err := telemetry.RegisterGormTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
	}, a.Logger); err != nil {
		return fmt.Errorf("failed to register database tracing: %w", err)
	}

	if cfg.Invoicing.CheckpointsEnabled {
		a.checkpoints = persistence.NewGormCheckpointRepository(db.DB)
	}
	return nil
}

// HealthChecks returns the dependency checks served by /health.
func (a *App) HealthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{}
	if a.Database != nil {
		checks["database"] = a.Database.Ping
	}
	if p, ok := a.Lock.(interface{ Ping(context.Context) error }); ok {
		checks["redis"] = p.Ping
	}
	return checks
}

// Close releases every opened resource in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Lock != nil {
		if err := a.Lock.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close order lock: %w", err))
		}
	}
	if a.Database != nil {
		if err := a.Database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
