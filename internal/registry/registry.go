package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"memoryhttpd/internal/keyspace"
)

const DefaultSweepInterval = time.Second

// SweepFunc observes one completed sweep pass.
type SweepFunc func(removed int, took time.Duration)

type Stats struct {
	Namespaces int
	Entries    int
}

// Registry owns one keyspace.Store per host. Namespaces are created on first
// write and live for the life of the process.
type Registry struct {
	mu            sync.RWMutex
	namespaces    map[string]*keyspace.Store
	sweepInterval time.Duration
	onSweep       SweepFunc
	now           func() time.Time
	stopCh        chan struct{}
	doneCh        chan struct{}
	closeOnce     sync.Once
}

// NewRegistry starts the background sweep loop. A zero interval uses
// DefaultSweepInterval; a negative one disables sweeping, leaving only lazy
// expiry on access.
func NewRegistry(sweepInterval time.Duration, onSweep SweepFunc) *Registry {
	if sweepInterval == 0 {
		sweepInterval = DefaultSweepInterval
	}
	reg := &Registry{
		namespaces:    make(map[string]*keyspace.Store),
		sweepInterval: sweepInterval,
		onSweep:       onSweep,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	if sweepInterval > 0 {
		go reg.sweepLoop()
	} else {
		close(reg.doneCh)
	}
	return reg
}

// CanonicalHost is the namespace identifier for a raw Host value.
func CanonicalHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "localhost"
	}
	return host
}

// GetOrCreate returns the namespace for host, creating it if needed.
func (r *Registry) GetOrCreate(host string) *keyspace.Store {
	host = CanonicalHost(host)

	r.mu.RLock()
	store := r.namespaces[host]
	r.mu.RUnlock()
	if store != nil {
		return store
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if store = r.namespaces[host]; store == nil {
		store = keyspace.NewStore()
		r.namespaces[host] = store
	}
	return store
}

// Get never creates a namespace.
func (r *Registry) Get(host string) (*keyspace.Store, bool) {
	host = CanonicalHost(host)
	r.mu.RLock()
	defer r.mu.RUnlock()
	store, ok := r.namespaces[host]
	return store, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.namespaces)
}

func (r *Registry) Stats() Stats {
	stores := r.snapshot()
	stats := Stats{Namespaces: len(stores)}
	for _, store := range stores {
		stats.Entries += store.Len()
	}
	return stats
}

// Sweep removes entries expired at now from every namespace.
func (r *Registry) Sweep(now time.Time) int {
	removed := 0
	for _, store := range r.snapshot() {
		removed += store.Sweep(now)
	}
	return removed
}

func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.stopCh)
	})
}

// Stop ends the sweep loop and waits for an in-progress pass to finish.
func (r *Registry) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) snapshot() []*keyspace.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stores := make([]*keyspace.Store, 0, len(r.namespaces))
	for _, store := range r.namespaces {
		stores = append(stores, store)
	}
	return stores
}

func (r *Registry) sweepLoop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweepOnce()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) sweepOnce() {
	start := r.now()
	removed := r.Sweep(start)
	if r.onSweep != nil {
		r.onSweep(removed, time.Since(start))
	}
}
