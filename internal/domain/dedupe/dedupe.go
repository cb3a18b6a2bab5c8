// Package dedupe guards per-student work against concurrent duplicates.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxInFlight = 10000

// Guard tracks keys currently being processed.
type Guard interface {
	// Acquire claims key. It returns false when key is already held
	// or the guard is at capacity.
	Acquire(ctx context.Context, key string) bool

	// Release frees key so it can be claimed again. Releasing an unheld key is a no-op.
	Release(ctx context.Context, key string)

	// Size returns the number of held keys.
	Size() int64
}

type inFlightGuard struct {
	mu      sync.Mutex
	held    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewGuard creates an in-process guard.
func NewGuard(opts ...Option) Guard {
	g := &inFlightGuard{maxSize: defaultMaxInFlight}
	for _, opt := range opts {
		opt(g)
	}
	g.held = make(map[string]struct{})
	return g
}

func (g *inFlightGuard) Acquire(ctx context.Context, key string) bool {
	if ctx.Err() != nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return false
	}
	if g.maxSize > 0 && len(g.held) >= g.maxSize {
		return false
	}
	g.held[key] = struct{}{}
	g.size.Add(1)
	return true
}

func (g *inFlightGuard) Release(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		delete(g.held, key)
		g.size.Add(-1)
	}
}

func (g *inFlightGuard) Size() int64 {
	return g.size.Load()
}
