// Package provision implements the table-provisioning step shared by
// the Bootstrapper and refresh: for every mount in a Catalog, acquire a
// pooled connection, probe for the table, and create it if missing.
package provision

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/achillean/loggerfs/internal/catalog"
	"github.com/achillean/loggerfs/internal/dbpool"
	"github.com/achillean/loggerfs/internal/sqlgen"
)

// Tables opens a connection for every mount in cat, probes its table
// with a zero-row SELECT, and issues CREATE TABLE when the probe fails.
// A CREATE failure is returned to the caller — fatal to startup when
// called from bootstrap, best-effort (logged, Catalog left untouched)
// when called from refresh.
func Tables(ctx context.Context, cat *catalog.Catalog, pool *dbpool.Pool, log *zap.Logger) error {
	for _, path := range cat.IterMounts() {
		m, ok := cat.LookupMount(path)
		if !ok {
			continue
		}
		db, cap, release, err := pool.Acquire(ctx, m)
		if err != nil {
			return fmt.Errorf("mount %q: connect: %w", m.Path, err)
		}
		exists := cap.ProbeTable(ctx, db, m.Endpoint.Table)
		if exists {
			release()
			log.Debug("table already exists", zap.String("mount", m.Path), zap.String("table", m.Endpoint.Table))
			continue
		}

		columns := cat.ColumnUniverse(m)
		stmt := sqlgen.BuildCreateTable(m, columns)
		err = cap.CreateTable(ctx, db, stmt)
		release()
		if err != nil {
			return fmt.Errorf("mount %q: create table %q: %w", m.Path, m.Endpoint.Table, err)
		}
		log.Info("created table", zap.String("mount", m.Path), zap.String("table", m.Endpoint.Table))
	}
	return nil
}
