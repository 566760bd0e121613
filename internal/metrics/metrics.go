// Package metrics exposes Prometheus counters for ingestion and refresh
// outcomes, without changing the filesystem-visible write contract.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups loggerfs's counters and satisfies internal/ingest.Metrics.
type Registry struct {
	reg          *prometheus.Registry
	linesMatched *prometheus.CounterVec
	rowsInserted *prometheus.CounterVec
	insertErrors *prometheus.CounterVec
	refreshTotal *prometheus.CounterVec
}

// New creates a fresh Prometheus registry and registers loggerfs's
// counters against it. The metrics HTTP server reads the registry
// returned by Gatherer.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Registry{
		reg: reg,
		linesMatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loggerfs_lines_matched_total",
			Help: "Lines that matched a mount's schema and produced an insert attempt.",
		}, []string{"mount", "schema"}),
		rowsInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loggerfs_rows_inserted_total",
			Help: "Rows successfully inserted.",
		}, []string{"mount", "schema"}),
		insertErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loggerfs_insert_errors_total",
			Help: "Inserts that failed at the database layer (swallowed toward the writer).",
		}, []string{"mount", "schema"}),
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loggerfs_refresh_total",
			Help: "Catalog refresh attempts, labeled by outcome.",
		}, []string{"result"}),
	}
}

func (r *Registry) LineMatched(mount, schema string) { r.linesMatched.WithLabelValues(mount, schema).Inc() }
func (r *Registry) RowInserted(mount, schema string) { r.rowsInserted.WithLabelValues(mount, schema).Inc() }
func (r *Registry) InsertError(mount, schema string) { r.insertErrors.WithLabelValues(mount, schema).Inc() }

// RefreshResult labels: "ok" or "failed".
func (r *Registry) RefreshResult(result string) { r.refreshTotal.WithLabelValues(result).Inc() }

// Gatherer exposes the underlying Prometheus registry for Serve or for
// tests that want to scrape counters directly.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Serve starts an HTTP server exposing /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
