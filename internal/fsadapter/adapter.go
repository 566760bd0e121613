// Package fsadapter translates filesystem callbacks into Catalog
// lookups, ingestion calls, and the distinguished refresh action. The
// FUSE-specific wiring lives in fuse.go; this file holds the
// kernel-agnostic logic so it can be exercised directly in tests
// without mounting anything.
package fsadapter

import (
	"context"

	"go.uber.org/zap"

	"github.com/achillean/loggerfs/internal/catalog"
	"github.com/achillean/loggerfs/internal/dbpool"
	"github.com/achillean/loggerfs/internal/ingest"
	"github.com/achillean/loggerfs/internal/refresh"
)

// RefreshName is the distinguished virtual file that triggers a reload.
const RefreshName = ".refresh"

// Errno mirrors the small set of POSIX error codes this adapter ever
// returns, kept independent of any FUSE binding's error type so
// internal/fsadapter has no hard dependency on go-fuse.
type Errno int

const (
	OK Errno = iota
	ENOENT
	EACCES
)

// Attr is a FUSE-agnostic description of getattr's result.
type Attr struct {
	Mode  uint32
	Nlink uint32
	Size  uint64
	UID   uint32
	GID   uint32
}

const (
	sIFDIR = 0o040000
	sIFREG = 0o100000
)

// Adapter holds only shared read access to the live Catalog (through
// Refresher) and the Pool; it must never retain a Catalog reference
// across calls.
type Adapter struct {
	r       *refresh.Refresher
	pool    *dbpool.Pool
	metrics ingest.Metrics
	log     *zap.Logger
}

// New builds an Adapter.
func New(r *refresh.Refresher, pool *dbpool.Pool, metrics ingest.Metrics, log *zap.Logger) *Adapter {
	return &Adapter{r: r, pool: pool, metrics: metrics, log: log}
}

// GetattrRoot returns the root directory's attributes.
func GetattrRoot() Attr {
	return Attr{Mode: sIFDIR | 0o555, Nlink: 2}
}

// Getattr resolves name (without its leading '/') against the live
// Catalog and RefreshName.
func (a *Adapter) Getattr(name string) (Attr, Errno) {
	var attr Attr
	var found bool
	a.r.WithCatalog(func(cat *catalog.Catalog) {
		m, ok := cat.LookupMount(name)
		if !ok {
			return
		}
		found = true
		mode := m.Mode
		if mode == 0 {
			mode = 0o222
		}
		attr = Attr{Mode: sIFREG | mode, Nlink: 1, Size: 0, UID: m.UID, GID: m.GID}
	})
	if found {
		return attr, OK
	}
	if name == RefreshName {
		return Attr{Mode: sIFREG | 0o000, Nlink: 1}, OK
	}
	return Attr{}, ENOENT
}

// Readdir returns root's children in Catalog iteration order with
// RefreshName appended.
func (a *Adapter) Readdir() []string {
	var names []string
	a.r.WithCatalog(func(cat *catalog.Catalog) {
		names = cat.IterMounts()
	})
	return append(names, RefreshName)
}

// Open validates a path exists, or triggers a refresh for RefreshName.
// Refresh is best-effort: its outcome is never surfaced as an error to
// the opener.
func (a *Adapter) Open(name string) Errno {
	if name == RefreshName {
		a.r.Refresh()
		return OK
	}
	var ok bool
	a.r.WithCatalog(func(cat *catalog.Catalog) {
		_, ok = cat.LookupMount(name)
	})
	if !ok {
		return ENOENT
	}
	return OK
}

// Read always fails: no file in this filesystem supports reading back
// stored data.
func (a *Adapter) Read() Errno {
	return EACCES
}

// Write ingests buf for the mount at name and always reports len(buf)
// bytes consumed when the mount exists — database failures never
// shorten the reported write. Ingestion runs inside the Refresher's read
// lease, so a refresh waits for it before swapping the Catalog.
func (a *Adapter) Write(ctx context.Context, name string, buf []byte) (int, Errno) {
	var found bool
	a.r.WithCatalog(func(cat *catalog.Catalog) {
		m, ok := cat.LookupMount(name)
		if !ok {
			return
		}
		found = true
		ingest.Write(ctx, a.log, m, cat, a.pool, a.metrics, buf)
	})
	if !found {
		return 0, ENOENT
	}
	return len(buf), OK
}
