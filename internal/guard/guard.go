// Package guard enforces at most one in-flight sync run per tenant.
package guard

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned when the tenant already holds the guard
var ErrAlreadyRunning = errors.New("sync already running for tenant")

// Release frees a held guard. Calling it more than once is a no-op.
type Release func()

// Guard grants exclusive per-tenant execution.
type Guard interface {
	Acquire(ctx context.Context, tenantID string) (Release, error)
}

// MemoryGuard is an in-process guard. Entries vanish on restart.
type MemoryGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{running: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, tenantID string) (Release, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.running[tenantID]; held {
		return nil, ErrAlreadyRunning
	}
	g.running[tenantID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, tenantID)
			g.mu.Unlock()
		})
	}, nil
}

// IsRunning reports whether the tenant currently holds the guard
func (g *MemoryGuard) IsRunning(tenantID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.running[tenantID]
	return held
}
