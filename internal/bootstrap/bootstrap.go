// Package bootstrap implements the Bootstrapper component: load config,
// materialize the Catalog, provision missing tables, and hand back a
// ready-to-serve Refresher and Pool.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/achillean/loggerfs/internal/catalog"
	"github.com/achillean/loggerfs/internal/dbpool"
	"github.com/achillean/loggerfs/internal/provision"
	"github.com/achillean/loggerfs/internal/refresh"
)

// Options configures a Run.
type Options struct {
	ConfigDirs []string // search path, in order; see catalog.ConfigSearchPaths
	Metrics    refresh.Metrics
}

// Result is everything cmd/loggerfsd needs after a successful bootstrap.
type Result struct {
	Refresher *refresh.Refresher
	Pool      *dbpool.Pool
	ConfigDir string
}

// Run loads schemas.xml and logs.xml from the first directory in
// opts.ConfigDirs that has them, builds the Catalog, opens a pooled
// connection per mount, and creates any table that doesn't already
// exist. A load failure or a CREATE TABLE failure after a successful
// load is fatal: both a missing/malformed configuration and a DB
// connect failure at bootstrap abort startup.
func Run(ctx context.Context, log *zap.Logger, opts Options) (*Result, error) {
	cat, schemaDir, logDir, err := catalog.Load(opts.ConfigDirs, log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	log.Info("config loaded", zap.String("schemas_dir", schemaDir), zap.String("logs_dir", logDir), zap.Int("mounts", len(cat.IterMounts())))

	pool := dbpool.New()
	if err := provision.Tables(ctx, cat, pool, log); err != nil {
		pool.CloseAll()
		return nil, fmt.Errorf("bootstrap: provisioning: %w", err)
	}

	r := refresh.New(cat, opts.ConfigDirs, pool, log, opts.Metrics)
	return &Result{Refresher: r, Pool: pool, ConfigDir: logDir}, nil
}
