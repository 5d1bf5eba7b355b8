package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryRunGuard holds one billing run per date inside this process.
// It is suitable for single-instance deployments and testing.
type InMemoryRunGuard struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	expires map[string]time.Time
}

// NewInMemoryRunGuard creates a new in-memory run guard
func NewInMemoryRunGuard(ttl time.Duration) *InMemoryRunGuard {
	return &InMemoryRunGuard{
		ttl:     ttl,
		now:     time.Now,
		expires: make(map[string]time.Time),
	}
}

// TryAcquire takes the guard for runDate unless an unexpired holder exists
func (g *InMemoryRunGuard) TryAcquire(ctx context.Context, runDate string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiresAt, held := g.expires[runDate]; held && now.Before(expiresAt) {
		return false, nil
	}
	g.expires[runDate] = now.Add(g.ttl)
	return true, nil
}

// Release gives the guard for runDate back
func (g *InMemoryRunGuard) Release(ctx context.Context, runDate string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.expires, runDate)
	return nil
}

// Close releases resources. Safe to call multiple times.
func (g *InMemoryRunGuard) Close() error {
	return nil
}
