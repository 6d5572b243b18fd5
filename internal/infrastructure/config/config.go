package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of all environment overrides.
const EnvPrefix = "INVOICEBRIDGE"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Booqable  BooqableConfig
	Reeleezee ReeleezeeConfig
	Invoicing InvoicingConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Version string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	// SyncTimeout bounds a sync triggered over HTTP.
	SyncTimeout time.Duration
}

// DatabaseConfig holds database connection settings. The database only
// stores saga checkpoints and is optional.
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings for the order lock
type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// BooqableConfig holds the order source settings
type BooqableConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	PageSize       int
	MaxPages       int
}

// ReeleezeeConfig holds the accounting system settings
type ReeleezeeConfig struct {
	BaseURL        string
	Username       string
	Password       string
	AdminID        string
	ClientVersion  string
	TimeoutSeconds int
	SearchLimit    int
}

// InvoicingConfig holds saga and batch settings
type InvoicingConfig struct {
	HeaderPrefix       string
	VATRate            decimal.Decimal
	PaymentTermDays    int
	RevenueAccountID   string
	TaxRateID          string
	FinalizeEnabled    bool
	StrictLinePairing  bool
	ExactMatch         bool
	LockTTL            time.Duration
	Concurrency        int
	CheckpointsEnabled bool
}

// SchedulerConfig holds the daily sync trigger configuration
type SchedulerConfig struct {
	Enabled       bool
	CheckInterval time.Duration
	RunHour       int // UTC hour after which the daily run may start
	JobTimeout    time.Duration
	// CheckpointRetention is how long completed checkpoints are kept. Zero
	// disables pruning.
	CheckpointRetention time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
}

// legacyEnv maps config keys to the unprefixed variable names used by
// existing deployments.
var legacyEnv = map[string]string{
	"booqable.api_key":   "BOOQABLE_API_KEY",
	"reeleezee.username": "REELEEZEE_USERNAME",
	"reeleezee.password": "REELEEZEE_PASSWORD",
	"reeleezee.admin_id": "REELEEZEE_ADMIN_ID",
}

// Load loads configuration from a .env file, config.toml and environment
// variables.
// Priority (highest to lowest):
// 1. Environment variables with INVOICEBRIDGE_ prefix (e.g., INVOICEBRIDGE_DATABASE_PASSWORD)
// 2. Legacy variables (BOOQABLE_API_KEY, REELEEZEE_USERNAME, ...)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	return load("")
}

// LoadFile is Load with an explicit TOML file instead of the search path.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/invoicebridge")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Zero is meaningful for these.
	v.SetDefault("scheduler.run_hour", 2)
	v.SetDefault("invoicing.vat_rate", "0.21")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	vat := decimal.Zero
	if raw := strings.TrimSpace(v.GetString("invoicing.vat_rate")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invoicing.vat_rate: %w", err)
		}
		vat = parsed
	}

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Version: v.GetString("app.version"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			SyncTimeout:    v.GetDuration("http.sync_timeout"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("database.enabled"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Booqable: BooqableConfig{
			BaseURL:        v.GetString("booqable.base_url"),
			APIKey:         v.GetString("booqable.api_key"),
			TimeoutSeconds: v.GetInt("booqable.timeout_seconds"),
			PageSize:       v.GetInt("booqable.page_size"),
			MaxPages:       v.GetInt("booqable.max_pages"),
		},
		Reeleezee: ReeleezeeConfig{
			BaseURL:        v.GetString("reeleezee.base_url"),
			Username:       v.GetString("reeleezee.username"),
			Password:       v.GetString("reeleezee.password"),
			AdminID:        v.GetString("reeleezee.admin_id"),
			ClientVersion:  v.GetString("reeleezee.client_version"),
			TimeoutSeconds: v.GetInt("reeleezee.timeout_seconds"),
			SearchLimit:    v.GetInt("reeleezee.search_limit"),
		},
		Invoicing: InvoicingConfig{
			HeaderPrefix:       v.GetString("invoicing.header_prefix"),
			VATRate:            vat,
			PaymentTermDays:    v.GetInt("invoicing.payment_term_days"),
			RevenueAccountID:   v.GetString("invoicing.revenue_account_id"),
			TaxRateID:          v.GetString("invoicing.tax_rate_id"),
			FinalizeEnabled:    v.GetBool("invoicing.finalize_enabled"),
			StrictLinePairing:  v.GetBool("invoicing.strict_line_pairing"),
			ExactMatch:         v.GetBool("invoicing.exact_match"),
			LockTTL:            v.GetDuration("invoicing.lock_ttl"),
			Concurrency:        v.GetInt("invoicing.concurrency"),
			CheckpointsEnabled: v.GetBool("invoicing.checkpoints_enabled"),
		},
		Scheduler: SchedulerConfig{
			Enabled:             v.GetBool("scheduler.enabled"),
			CheckInterval:       v.GetDuration("scheduler.check_interval"),
			RunHour:             v.GetInt("scheduler.run_hour"),
			JobTimeout:          v.GetDuration("scheduler.job_timeout"),
			CheckpointRetention: v.GetDuration("scheduler.checkpoint_retention"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "invoicebridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// A manual sync answers synchronously.
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.SyncTimeout == 0 {
		cfg.HTTP.SyncTimeout = 4 * time.Minute
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "invoicebridge"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "invoicebridge:order-lock:"
	}
	if cfg.Booqable.BaseURL == "" {
		cfg.Booqable.BaseURL = "https://bicicare.booqable.com/api/boomerang/"
	}
	if cfg.Booqable.TimeoutSeconds == 0 {
		cfg.Booqable.TimeoutSeconds = 30
	}
	if cfg.Booqable.PageSize == 0 {
		cfg.Booqable.PageSize = 100
	}
	if cfg.Booqable.MaxPages == 0 {
		cfg.Booqable.MaxPages = 50
	}
	if cfg.Reeleezee.BaseURL == "" {
		cfg.Reeleezee.BaseURL = "https://apps.reeleezee.nl/api/v1/"
	}
	if cfg.Reeleezee.TimeoutSeconds == 0 {
		cfg.Reeleezee.TimeoutSeconds = 30
	}
	if cfg.Reeleezee.SearchLimit == 0 {
		cfg.Reeleezee.SearchLimit = 10
	}
	if cfg.Invoicing.HeaderPrefix == "" {
		cfg.Invoicing.HeaderPrefix = "Booqable-"
	}
	if cfg.Invoicing.PaymentTermDays == 0 {
		cfg.Invoicing.PaymentTermDays = 30
	}
	if cfg.Invoicing.RevenueAccountID == "" {
		cfg.Invoicing.RevenueAccountID = "61f4ae1b-7700-4685-9930-ddfe71fb626e"
	}
	if cfg.Invoicing.TaxRateID == "" {
		cfg.Invoicing.TaxRateID = "1e44993a-15f6-419f-87e5-3e31ac3d9383"
	}
	if cfg.Invoicing.LockTTL == 0 {
		cfg.Invoicing.LockTTL = 5 * time.Minute
	}
	if cfg.Invoicing.Concurrency == 0 {
		cfg.Invoicing.Concurrency = 1
	}
	if cfg.Scheduler.CheckInterval == 0 {
		cfg.Scheduler.CheckInterval = 15 * time.Minute
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Invoicing.CheckpointsEnabled && !c.Database.Enabled {
		return fmt.Errorf("invoicing.checkpoints_enabled requires database.enabled")
	}

	if c.Invoicing.VATRate.IsNegative() || c.Invoicing.VATRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("invoicing.vat_rate must be in [0, 1), got %s", c.Invoicing.VATRate)
	}
	if c.Invoicing.PaymentTermDays < 0 {
		return fmt.Errorf("invoicing.payment_term_days cannot be negative")
	}
	if c.Invoicing.Concurrency < 1 {
		return fmt.Errorf("invoicing.concurrency must be at least 1")
	}
	if c.Scheduler.RunHour < 0 || c.Scheduler.RunHour > 23 {
		return fmt.Errorf("scheduler.run_hour must be between 0 and 23, got %d", c.Scheduler.RunHour)
	}
	if c.Scheduler.CheckpointRetention < 0 {
		return fmt.Errorf("scheduler.checkpoint_retention cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Booqable.APIKey == "" {
			return fmt.Errorf("booqable.api_key is required in production")
		}
		if c.Reeleezee.Username == "" || c.Reeleezee.Password == "" || c.Reeleezee.AdminID == "" {
			return fmt.Errorf("reeleezee.username, reeleezee.password and reeleezee.admin_id are required in production")
		}
		if c.Database.Enabled && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
