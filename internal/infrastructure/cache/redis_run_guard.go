package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/schoolpay/backend/internal/infrastructure/config"
)

const defaultRunGuardPrefix = "billing:run:"

// releaseScript deletes the key only while it still holds our token, so a
// run whose guard already expired cannot release a newer run's guard.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunGuard holds one billing run per date across all instances
// sharing the Redis server.
type RedisRunGuard struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisRunGuard connects to Redis and creates a run guard
func NewRedisRunGuard(cfg config.RedisConfig, ttl time.Duration) (*RedisRunGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRunGuardWithClient(client, ttl), nil
}

// NewRedisRunGuardWithClient creates a run guard on an existing client
func NewRedisRunGuardWithClient(client *redis.Client, ttl time.Duration) *RedisRunGuard {
	return &RedisRunGuard{
		client:    client,
		keyPrefix: defaultRunGuardPrefix,
		ttl:       ttl,
		tokens:    make(map[string]string),
	}
}

// TryAcquire takes the guard for runDate with SET NX and the configured TTL.
// Returns false when another run holds it.
func (g *RedisRunGuard) TryAcquire(ctx context.Context, runDate string) (bool, error) {
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, g.keyPrefix+runDate, token, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire billing run guard: %w", err)
	}
	if !ok {
		return false, nil
	}

	g.mu.Lock()
	g.tokens[runDate] = token
	g.mu.Unlock()
	return true, nil
}

// Release gives the guard for runDate back if this process still holds it
func (g *RedisRunGuard) Release(ctx context.Context, runDate string) error {
	g.mu.Lock()
	token, ok := g.tokens[runDate]
	delete(g.tokens, runDate)
	g.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, g.client, []string{g.keyPrefix + runDate}, token).Err(); err != nil {
		return fmt.Errorf("failed to release billing run guard: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (g *RedisRunGuard) Close() error {
	return g.client.Close()
}
