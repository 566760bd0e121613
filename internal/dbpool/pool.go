// Package dbpool is the Connection Pool component: a per-virtual-path
// cache of open database handles, one map keyed by path across both
// backend families, with a per-path exclusive lease so two writers on the same mount serialize
// while writers on different mounts proceed in parallel.
package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/achillean/loggerfs/internal/catalog"
)

// Capability is the dynamic dispatch surface used in place of the
// original's build-time #ifdef WITH_POSTGRESQL/WITH_MYSQL: one
// implementation per backend, selected at runtime off LogMount.Backend.
type Capability interface {
	// Connect opens a *sql.DB for the given endpoint. The configured
	// port is always passed, fixing a port-handling asymmetry in the
	// original's MySQL connect path.
	Connect(ctx context.Context, ep catalog.Endpoint) (*sql.DB, error)
	// ProbeTable reports whether the mount's table already exists by
	// attempting a zero-row SELECT.
	ProbeTable(ctx context.Context, db *sql.DB, table string) bool
	// CreateTable executes a CREATE TABLE statement.
	CreateTable(ctx context.Context, db *sql.DB, stmt string) error
	// Insert executes an INSERT statement.
	Insert(ctx context.Context, db *sql.DB, stmt string) error
}

// entry is one cached handle plus the mutex that gives it an exclusive,
// single-writer-in-flight lease. The mutex guards use of the handle, not
// the pool's map — it is never held across the pool's own lock.
type entry struct {
	mu sync.Mutex
	db *sql.DB
}

// Pool caches one entry per virtual path across both backend families.
// The map itself is guarded by mu, which is released before any query is
// issued — queries only hold their own entry's mutex.
type Pool struct {
	mu       sync.Mutex
	entries  map[string]*entry
	backends map[catalog.Backend]Capability
}

// New builds a Pool with the standard Postgres/MySQL capabilities.
func New() *Pool {
	return NewWithBackends(map[catalog.Backend]Capability{
		catalog.Postgres: PostgresCapability{},
		catalog.MySQL:    MySQLCapability{},
	})
}

// NewWithBackends builds a Pool against an arbitrary backend set, letting
// tests substitute a fake Capability instead of dialing a real database.
func NewWithBackends(backends map[catalog.Backend]Capability) *Pool {
	return &Pool{
		entries:  make(map[string]*entry),
		backends: backends,
	}
}

func (p *Pool) capability(b catalog.Backend) (Capability, error) {
	c, ok := p.backends[b]
	if !ok {
		return nil, fmt.Errorf("dbpool: unknown backend %q", b)
	}
	return c, nil
}

// Acquire returns the handle cached for m.Path, opening one if absent.
// The returned release func must be called exactly once by the caller
// (typically via defer) to give up the per-path lease; it does not close
// the handle. Acquire itself only briefly holds the pool's map mutex —
// the handle's own mutex, held until release, is what serializes
// concurrent writers to the same mount.
func (p *Pool) Acquire(ctx context.Context, m *catalog.LogMount) (db *sql.DB, cap Capability, release func(), err error) {
	cap, err = p.capability(m.Backend)
	if err != nil {
		return nil, nil, nil, err
	}

	p.mu.Lock()
	e, ok := p.entries[m.Path]
	if !ok {
		e = &entry{}
		p.entries[m.Path] = e
	}
	p.mu.Unlock()

	e.mu.Lock()
	if e.db == nil {
		conn, err := cap.Connect(ctx, m.Endpoint)
		if err != nil {
			e.mu.Unlock()
			p.mu.Lock()
			delete(p.entries, m.Path)
			p.mu.Unlock()
			return nil, nil, nil, err
		}
		e.db = conn
	}
	return e.db, cap, e.mu.Unlock, nil
}

// CloseAll closes every cached handle and empties the pool, for teardown
// or as part of refresh reconciliation.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*entry)
	p.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		if e.db != nil {
			e.db.Close()
		}
		e.mu.Unlock()
	}
}

// ClosePath closes and forgets the cached handle for one path, if any.
// Used by refresh reconciliation to drop entries for mounts that
// disappeared from the new Catalog — the original partially overlooks
// this on refresh.
func (p *Pool) ClosePath(path string) {
	p.mu.Lock()
	e, ok := p.entries[path]
	if ok {
		delete(p.entries, path)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	if e.db != nil {
		e.db.Close()
	}
	e.mu.Unlock()
}

// Paths returns every path currently cached in the pool.
func (p *Pool) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.entries))
	for k := range p.entries {
		out = append(out, k)
	}
	return out
}
