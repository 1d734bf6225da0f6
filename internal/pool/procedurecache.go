package pool

import "sync"

// ProcedureCache is an opaque, pool-scoped cache of prepared statements
// keyed by SQL text. The pool only owns its lifecycle: one cache is
// created together with the pool (not lazily on first use) and Clear
// replaces it with a fresh one. Callers take the cache's own lock to read
// or populate it, per the "accessed under its own lock by higher layers"
// contract.
type ProcedureCache struct {
	mu      sync.Mutex
	entries map[string]any
}

func newProcedureCache() *ProcedureCache {
	return &ProcedureCache{entries: make(map[string]any)}
}

// Get returns the cached entry for sql, if any.
func (c *ProcedureCache) Get(sql string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[sql]
	return v, ok
}

// Put stores or replaces the cached entry for sql.
func (c *ProcedureCache) Put(sql string, stmt any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sql] = stmt
}
