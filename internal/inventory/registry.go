package inventory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Registry owns one Store per session id.
type Registry struct {
	repos   Repositories
	logger  *slog.Logger
	idleTTL time.Duration
	clock   func() time.Time

	mu      sync.Mutex
	stores  map[string]*Store
	loading singleflight.Group
}

// NewRegistry constructs a Registry. Stores idle for longer than idleTTL are
// closed by Sweep.
func NewRegistry(repos Repositories, logger *slog.Logger, idleTTL time.Duration, clock func() time.Time) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		repos:   repos,
		logger:  logger,
		idleTTL: idleTTL,
		clock:   clock,
		stores:  make(map[string]*Store),
	}
}

// Open returns the store for sessionID, creating and loading it on first use.
// Concurrent calls for the same session wait for one Load and share its
// result. Only loaded stores are registered; a failed load is not retained.
func (r *Registry) Open(ctx context.Context, sessionID string) (*Store, error) {
	if st := r.lookup(sessionID); st != nil {
		return st, nil
	}
	ch := r.loading.DoChan(sessionID, func() (any, error) {
		if st := r.lookup(sessionID); st != nil {
			return st, nil
		}
		st := NewStore(r.repos, r.logger, StoreConfig{SessionID: sessionID, Clock: r.clock})
		if err := st.Load(ctx); err != nil {
			st.Close()
			return nil, err
		}
		r.mu.Lock()
		r.stores[sessionID] = st
		r.mu.Unlock()
		r.logger.Debug("inventory store opened", slog.String("session", sessionID))
		return st, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) lookup(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.stores[sessionID]; ok && !st.Closed() {
		return st
	}
	return nil
}

// Close tears down the store for sessionID, if any.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	st, ok := r.stores[sessionID]
	delete(r.stores, sessionID)
	r.mu.Unlock()
	if ok {
		st.Close()
	}
}

// Len reports the number of open stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Sweep closes stores idle since before now minus the idle TTL and returns
// how many were closed.
func (r *Registry) Sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idleTTL)
	var stale []*Store
	r.mu.Lock()
	for id, st := range r.stores {
		if st.LastUsed().Before(cutoff) {
			stale = append(stale, st)
			delete(r.stores, id)
		}
	}
	r.mu.Unlock()
	for _, st := range stale {
		st.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("inventory stores swept", slog.Int("closed", len(stale)))
	}
	return len(stale)
}

// Run sweeps periodically until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	if r.idleTTL <= 0 {
		return
	}
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.clock())
		}
	}
}

// Shutdown closes every store.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()
	for _, st := range stores {
		st.Close()
	}
}
