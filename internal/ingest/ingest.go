// Package ingest implements the write-path transformation from a
// buffer of bytes into zero or more executed SQL INSERTs.
package ingest

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/achillean/loggerfs/internal/catalog"
	"github.com/achillean/loggerfs/internal/dbpool"
	"github.com/achillean/loggerfs/internal/logutil"
	"github.com/achillean/loggerfs/internal/matcher"
	"github.com/achillean/loggerfs/internal/sqlgen"
)

// Metrics is the subset of internal/metrics that ingestion reports to.
// Kept as an interface here so this package doesn't import metrics
// directly and tests can pass a no-op.
type Metrics interface {
	LineMatched(mount, schema string)
	RowInserted(mount, schema string)
	InsertError(mount, schema string)
}

type noopMetrics struct{}

func (noopMetrics) LineMatched(string, string) {}
func (noopMetrics) RowInserted(string, string)  {}
func (noopMetrics) InsertError(string, string)  {}

// NoopMetrics is a Metrics implementation that discards everything.
var NoopMetrics Metrics = noopMetrics{}

// Write ingests buf for mount m: split on '\n', trim each line, run the
// Line Matcher, and execute one INSERT per successful match. Database
// failures are swallowed toward the caller and only logged/metered,
// never surfaced as a short write or an error. The int return is for
// test and log convenience (rows inserted); callers implementing the
// filesystem write() contract should report len(buf), not this value.
func Write(ctx context.Context, log *zap.Logger, m *catalog.LogMount, cat *catalog.Catalog, pool *dbpool.Pool, metrics Metrics, buf []byte) (rowsInserted int) {
	if metrics == nil {
		metrics = NoopMetrics
	}
	lines := strings.Split(string(buf), "\n")
	for _, raw := range lines {
		line := matcher.Trim(raw)
		if line == "" {
			continue
		}
		results, unresolved := matcher.Match(line, m, cat)
		for _, name := range unresolved {
			log.Warn("mount references unknown schema",
				zap.String("mount", m.Path), zap.String("schema", name))
		}
		for _, r := range results {
			metrics.LineMatched(m.Path, r.Schema.Name)
			if err := execInsert(ctx, m, cat, pool, r); err != nil {
				metrics.InsertError(m.Path, r.Schema.Name)
				log.Warn("insert failed",
					zap.String("mount", m.Path),
					zap.String("schema", r.Schema.Name),
					zap.Error(err))
				continue
			}
			metrics.RowInserted(m.Path, r.Schema.Name)
			rowsInserted++
			log.Debug("row inserted", zap.String("mount", m.Path), logutil.Values(
				zap.String("schema", r.Schema.Name),
				zap.Int("columns", len(r.Bindings)),
			))
		}
	}
	return rowsInserted
}

func execInsert(ctx context.Context, m *catalog.LogMount, cat *catalog.Catalog, pool *dbpool.Pool, r matcher.Result) error {
	db, cap, release, err := pool.Acquire(ctx, m)
	if err != nil {
		return err
	}
	defer release()

	stmt := sqlgen.BuildInsert(m, r, sqlgen.Escape(m.Backend))
	return cap.Insert(ctx, db, stmt)
}
