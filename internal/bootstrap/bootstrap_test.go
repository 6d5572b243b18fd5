package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bicicare/invoicebridge/internal/infrastructure/booqable"
	"github.com/bicicare/invoicebridge/internal/infrastructure/cache"
	"github.com/bicicare/invoicebridge/internal/infrastructure/config"
	"github.com/bicicare/invoicebridge/internal/infrastructure/reeleezee"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "invoicebridge", Env: "test", Version: "test"},
		Log: config.LogConfig{Level: "debug", Format: "json", Output: "stderr"},
		Booqable: config.BooqableConfig{
			BaseURL: "http://booqable.invalid/api/boomerang/",
			APIKey:  "key",
		},
		Reeleezee: config.ReeleezeeConfig{
			BaseURL:  "http://reeleezee.invalid/api/v1/",
			Username: "user",
			Password: "secret",
			AdminID:  "admin-1",
		},
		Invoicing: config.InvoicingConfig{
			HeaderPrefix: "Booqable-",
			VATRate:      decimal.RequireFromString("0.21"),
			Concurrency:  2,
			LockTTL:      time.Minute,
		},
		Scheduler: config.SchedulerConfig{
			RunHour:       2,
			CheckInterval: time.Minute,
			JobTimeout:    time.Minute,
		},
		Telemetry: config.TelemetryConfig{ServiceName: "invoicebridge"},
	}
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(testConfig())
	require.NoError(t, err)
	assert.NotNil(t, log)

	cfg := testConfig()
	cfg.Log.Level = "verbose"
	_, err = NewLogger(cfg)
	assert.Error(t, err)
}

func TestNew_MinimalStack(t *testing.T) {
	app, err := New(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, app.Sync)
	assert.NotNil(t, app.Trigger)
	assert.NotNil(t, app.Metrics)
	assert.Nil(t, app.Database)
	assert.IsType(t, &cache.InMemoryOrderLock{}, app.Lock)
	assert.Empty(t, app.HealthChecks())

	require.NoError(t, app.Close(context.Background()))
}

func TestNew_InvalidCredentials(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{"booqable key", func(c *config.Config) { c.Booqable.APIKey = "" }, booqable.ErrConfigMissingAPIKey},
		{"reeleezee admin", func(c *config.Config) { c.Reeleezee.AdminID = "" }, reeleezee.ErrConfigMissingAdminID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			app, err := New(context.Background(), cfg, zap.NewNop())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, app)
		})
	}
}

func TestNew_InvalidScheduler(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.CheckInterval = 0
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
