// Package registry implements the process-wide PoolRegistry: a
// connection-string-keyed map from raw or normalized connection string to
// ConnectionPool, with a single-slot most-recently-used cache for the hot
// path.
package registry

import (
	"context"
	"log"
	"sync"

	"github.com/sref/mysqlpool/internal/pool"
	"github.com/sref/mysqlpool/pkg/connstring"
)

// slot is the map value: nil Pool means "pooling disabled for this
// string", the negative-cache case.
type slot struct {
	pool *pool.ConnectionPool
}

// Registry is the process-wide PoolRegistry. The zero value is not
// usable; construct with New and inject the instance rather than reaching
// for a package-level singleton.
type Registry struct {
	mu      sync.Mutex
	byKey   map[string]*slot
	mruKey  string
	mruSlot *slot
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byKey: make(map[string]*slot)}
}

// GetOrCreate returns the pool for rawString, creating one if missing and
// createIfMissing is true. A nil, nil result means pooling is disabled
// for this connection string, or that no pool exists yet and
// createIfMissing is false.
func (r *Registry) GetOrCreate(rawString string, createIfMissing bool) (*pool.ConnectionPool, error) {
	if s, ok := r.mruHit(rawString); ok {
		return s.pool, nil
	}

	r.mu.Lock()
	if s, ok := r.byKey[rawString]; ok {
		r.mu.Unlock()
		r.setMRU(rawString, s)
		return s.pool, nil
	}
	r.mu.Unlock()

	settings, err := connstring.Parse(rawString)
	if err != nil {
		return nil, err
	}

	if !settings.Pooling {
		s := &slot{pool: nil}
		r.mu.Lock()
		r.byKey[rawString] = s
		r.mu.Unlock()
		r.setMRU(rawString, s)
		return nil, nil
	}

	normalized := settings.Normalize()

	r.mu.Lock()
	if s, ok := r.byKey[normalized]; ok {
		if normalized != rawString {
			r.byKey[rawString] = s
		}
		r.mu.Unlock()
		r.setMRU(rawString, s)
		return s.pool, nil
	}
	r.mu.Unlock()

	if !createIfMissing {
		return nil, nil
	}

	name := settings.DisplayName()
	candidate := pool.New(name, settings)

	r.mu.Lock()
	winner, exists := r.byKey[normalized]
	if exists {
		r.mu.Unlock()
		log.Printf("[registry] pool for %s lost creation race, discarding unused pool", name)
		_ = candidate.Dispose(context.Background())
		r.setMRU(rawString, winner)
		return winner.pool, nil
	}

	s := &slot{pool: candidate}
	r.byKey[normalized] = s
	if normalized != rawString {
		r.byKey[rawString] = s
	}
	r.mu.Unlock()

	candidate.StartBackgroundTasks()
	r.setMRU(rawString, s)
	return candidate, nil
}

// ClearAll clears every unique pool currently known to the registry. A
// pool stored under multiple keys (raw + normalized alias) is cleared
// exactly once.
func (r *Registry) ClearAll(ctx context.Context, mode pool.IOMode) error {
	r.mu.Lock()
	seen := make(map[*pool.ConnectionPool]struct{}, len(r.byKey))
	var pools []*pool.ConnectionPool
	for _, s := range r.byKey {
		if s.pool == nil {
			continue
		}
		if _, ok := seen[s.pool]; ok {
			continue
		}
		seen[s.pool] = struct{}{}
		pools = append(pools, s.pool)
	}
	r.mu.Unlock()

	var firstErr error
	for _, p := range pools {
		if err := p.Clear(ctx, mode); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) mruHit(key string) (*slot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mruKey == key && r.mruSlot != nil {
		return r.mruSlot, true
	}
	return nil, false
}

func (r *Registry) setMRU(key string, s *slot) {
	r.mu.Lock()
	r.mruKey = key
	r.mruSlot = s
	r.mu.Unlock()
}
