package workspace

import (
	"context"
	"log"
	"sync"
	"time"

	"anoa.com/classboard/internal/metrics"
)

// Registry hands out one workspace per device, creating it on first use.
type Registry struct {
	deps    Deps
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	items map[string]*Workspace
}

func NewRegistry(deps Deps, idleTTL time.Duration) *Registry {
	return &Registry{
		deps:    deps,
		idleTTL: idleTTL,
		now:     time.Now,
		items:   make(map[string]*Workspace),
	}
}

// Get returns the workspace of deviceID, restoring it from storage when
// it is not in memory. A workspace whose restore hit a storage error is
// served signed out but not kept, so the next request restores again.
func (r *Registry) Get(ctx context.Context, deviceID string) *Workspace {
	r.mu.Lock()
	ws, ok := r.items[deviceID]
	r.mu.Unlock()
	if ok {
		ws.touch(r.now())
		return ws
	}

	built, err := New(ctx, deviceID, r.deps)
	if err != nil {
		log.Printf("[workspace] restore %s failed, not caching: %v", deviceID, err)
		return built
	}

	r.mu.Lock()
	if existing, ok := r.items[deviceID]; ok {
		ws = existing
	} else {
		ws = built
		r.items[deviceID] = ws
		metrics.Workspaces.Set(float64(len(r.items)))
	}
	r.mu.Unlock()

	ws.touch(r.now())
	return ws
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep drops workspaces idle for longer than the idle TTL and returns
// how many were dropped.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, ws := range r.items {
		if ws.idleSince(cutoff) {
			delete(r.items, id)
			n++
		}
	}
	metrics.Workspaces.Set(float64(len(r.items)))
	return n
}
