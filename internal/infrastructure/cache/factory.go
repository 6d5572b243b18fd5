package cache

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
)

// Lock is an OrderLock that owns resources.
type Lock interface {
	integration.OrderLock
	io.Closer
}

// OrderLockFactory creates order locks based on configuration
type OrderLockFactory struct {
	redisConfig           RedisConfig
	redisEnabled          bool
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// OrderLockFactoryOption is a functional option for configuring the factory
type OrderLockFactoryOption func(*OrderLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) OrderLockFactoryOption {
	return func(f *OrderLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory lock. Default is true.
func WithInMemoryFallback(allow bool) OrderLockFactoryOption {
	return func(f *OrderLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewOrderLockFactory creates a new factory. When redisEnabled is false the
// factory always returns the in-memory lock.
func NewOrderLockFactory(cfg RedisConfig, redisEnabled bool, opts ...OrderLockFactoryOption) *OrderLockFactory {
	f := &OrderLockFactory{
		redisConfig:           cfg,
		redisEnabled:          redisEnabled,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateLock returns a Redis lock when Redis is enabled and reachable, and the
// in-memory lock otherwise (unless fallback is disabled).
func (f *OrderLockFactory) CreateLock() (Lock, error) {
	if !f.redisEnabled {
		f.logger.Info("using in-memory order lock")
		return NewInMemoryOrderLock(), nil
	}

	lock, err := NewRedisOrderLock(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis order lock",
			zap.String("host", f.redisConfig.Host),
			zap.Int("port", f.redisConfig.Port),
		)
		return lock, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for order locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory order lock. "+
		"Concurrent instances may run the same order twice.",
		zap.Error(err),
	)
	return NewInMemoryOrderLock(), nil
}
