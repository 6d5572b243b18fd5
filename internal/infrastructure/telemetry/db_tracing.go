package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled    bool
	DBSystem   string // Default: "postgresql"
	LogFullSQL bool   // include query variables in spans
}

// RegisterGormTracing installs the otelgorm plugin on db.
func RegisterGormTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	system := cfg.DBSystem
	if system == "" {
		system = "postgresql"
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(system)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", system),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
	)
	return nil
}
