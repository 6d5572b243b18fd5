// Command sync invoices the orders paid on one day and exits. The exit code
// is 1 when selection fails or any booking could not be invoiced.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bicicare/invoicebridge/internal/bootstrap"
	"github.com/bicicare/invoicebridge/internal/infrastructure/config"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		configPath string
		date       string
		printJSON  bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a config file")
	flag.StringVar(&date, "date", "", "Day to sync as YYYY-MM-DD (default: yesterday, UTC)")
	flag.BoolVar(&printJSON, "json", false, "Print the sync report as JSON on stdout")
	flag.Parse()

	day, err := parseDay(date, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
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

	os.Exit(run(cfg, log, day, printJSON))
}

func run(cfg *config.Config, log *zap.Logger, day time.Time, printJSON bool) int {
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize application", zap.Error(err))
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			log.Warn("Error releasing resources", zap.Error(err))
		}
	}()

	report, err := app.Trigger.RunDay(ctx, day)
	if err != nil {
		app.Logger.Error("Sync failed", zap.String("day", day.Format(dateLayout)), zap.Error(err))
		return 1
	}

	if printJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			app.Logger.Error("Failed to write report", zap.Error(err))
			return 1
		}
	}
	if report.Failed > 0 {
		return 1
	}
	return 0
}

// parseDay parses s as a UTC date, or returns the day before now when s is
// empty.
func parseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		now = now.UTC()
		return time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -date %q: expected YYYY-MM-DD", s)
	}
	return day, nil
}
