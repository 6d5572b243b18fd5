package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bicicare/invoicebridge/internal/bootstrap"
	"github.com/bicicare/invoicebridge/internal/infrastructure/config"
	"github.com/bicicare/invoicebridge/internal/interfaces/http/handler"
	"github.com/bicicare/invoicebridge/internal/interfaces/http/router"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting invoicebridge",
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
		zap.Bool("scheduler", cfg.Scheduler.Enabled),
		zap.Bool("checkpoints", cfg.Invoicing.CheckpointsEnabled),
		zap.Bool("finalize", cfg.Invoicing.FinalizeEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	log = app.Logger

	engine, err := router.NewEngine(router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TracingEnabled: cfg.Telemetry.Enabled,
		Meter:          app.Telemetry.Meter("http.server"),
		Logger:         log,
	}, router.Handlers{
		System:  handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, app.HealthChecks()),
		Webhook: handler.NewPaymentWebhookHandler(),
		Sync:    handler.NewSyncHandler(app.Trigger, nil).WithTimeout(cfg.HTTP.SyncTimeout),
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	if cfg.Scheduler.Enabled {
		if err := app.Trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := app.Trigger.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler did not stop in time", zap.Error(err))
	}
	if err := app.Close(shutdownCtx); err != nil {
		log.Error("Error releasing resources", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
