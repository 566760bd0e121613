// Package refresh implements the refresh barrier: an RWMutex-guarded
// Catalog reference where in-flight writes hold a reader lease and
// refresh acquires the writer role to swap the Catalog and reconcile
// the Connection Pool.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/achillean/loggerfs/internal/catalog"
	"github.com/achillean/loggerfs/internal/dbpool"
	"github.com/achillean/loggerfs/internal/provision"
)

// Metrics is the subset of internal/metrics that refresh reports to.
type Metrics interface {
	RefreshResult(result string)
}

type noopMetrics struct{}

func (noopMetrics) RefreshResult(string) {}

// NoopMetrics discards refresh outcomes.
var NoopMetrics Metrics = noopMetrics{}

// Refresher owns the live Catalog and coordinates refresh with the
// Filesystem Adapter's reads. A write holds a reader lease for the
// duration of one callback and must never retain the Catalog it
// observed past that.
type Refresher struct {
	mu      sync.RWMutex
	cat     *catalog.Catalog
	dirs    []string
	pool    *dbpool.Pool
	log     *zap.Logger
	metrics Metrics
}

// New builds a Refresher around an already-loaded Catalog.
func New(cat *catalog.Catalog, dirs []string, pool *dbpool.Pool, log *zap.Logger, metrics Metrics) *Refresher {
	if metrics == nil {
		metrics = NoopMetrics
	}
	return &Refresher{cat: cat, dirs: dirs, pool: pool, log: log, metrics: metrics}
}

// WithCatalog runs fn with a read lease on the live Catalog. Every read
// path in the Filesystem Adapter (getattr, readdir, open, write) goes
// through this so it never observes a Catalog mid-swap, and so refresh
// can drain in-flight reads before swapping.
func (r *Refresher) WithCatalog(fn func(*catalog.Catalog)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.cat)
}

// Refresh reloads schemas.xml and logs.xml via the external loader. If
// both reload cleanly, it builds a new Catalog, provisions any newly
// observed tables, reconciles the pool (closing handles for paths that
// disappeared), and atomically swaps the Catalog in. If loading fails,
// the live state is left untouched — refresh is best-effort; the caller
// (the filesystem adapter's open("/.refresh")) always reports success
// regardless of the bool this returns, matching the original.
func (r *Refresher) Refresh() bool {
	// Tags every log line this call emits so a burst of refreshes
	// triggered by the watcher's debounce window can still be told apart
	// in aggregated logs.
	id := uuid.New().String()
	log := r.log.With(zap.String("refresh_id", id))

	newCat, _, _, err := catalog.Load(r.dirs, log)
	if err != nil {
		log.Warn("refresh: config reload failed, keeping live catalog", zap.Error(err))
		r.metrics.RefreshResult("failed")
		return false
	}

	oldPaths := make(map[string]struct{})
	r.WithCatalog(func(c *catalog.Catalog) {
		for _, p := range c.IterMounts() {
			oldPaths[p] = struct{}{}
		}
	})

	if err := provision.Tables(context.Background(), newCat, r.pool, log); err != nil {
		log.Warn("refresh: provisioning failed, keeping live catalog", zap.Error(err))
		r.metrics.RefreshResult("failed")
		return false
	}

	r.mu.Lock()
	r.cat = newCat
	r.mu.Unlock()

	newPaths := make(map[string]struct{})
	for _, p := range newCat.IterMounts() {
		newPaths[p] = struct{}{}
	}
	for p := range oldPaths {
		if _, ok := newPaths[p]; !ok {
			r.pool.ClosePath(p)
		}
	}

	r.metrics.RefreshResult("ok")
	log.Info("refresh complete", zap.Int("mounts", len(newPaths)))
	return true
}

// debounce is the window the config watcher waits for a burst of
// filesystem events to settle before triggering one refresh, so an
// editor's write-then-rename doesn't cause a double reload.
const debounce = 250 * time.Millisecond
