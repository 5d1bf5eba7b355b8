package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/schoolpay/backend/internal/infrastructure/config"
)

// RunGuard is a billing run guard that owns a connection
type RunGuard interface {
	TryAcquire(ctx context.Context, runDate string) (bool, error)
	Release(ctx context.Context, runDate string) error
	Close() error
}

// RunGuardFactory creates run guards based on configuration
type RunGuardFactory struct {
	redisConfig           config.RedisConfig
	ttl                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RunGuardFactoryOption is a functional option for configuring the factory
type RunGuardFactoryOption func(*RunGuardFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RunGuardFactoryOption {
	return func(f *RunGuardFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory guard when Redis is unavailable.
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) RunGuardFactoryOption {
	return func(f *RunGuardFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRunGuardFactory creates a new factory
func NewRunGuardFactory(cfg config.RedisConfig, ttl time.Duration, opts ...RunGuardFactoryOption) *RunGuardFactory {
	f := &RunGuardFactory{
		redisConfig:           cfg,
		ttl:                   ttl,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateGuard creates a Redis run guard, falling back to an in-memory guard
// when Redis is unavailable and fallback is allowed
func (f *RunGuardFactory) CreateGuard() (RunGuard, error) {
	guard, err := NewRedisRunGuard(f.redisConfig, f.ttl)
	if err == nil {
		f.logger.Info("using Redis billing run guard", zap.String("addr", f.redisConfig.Addr()))
		return guard, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for billing run guard but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory billing run guard. "+
		"Overlapping runs on other instances will not be detected.",
		zap.Error(err),
	)
	return NewInMemoryRunGuard(f.ttl), nil
}
