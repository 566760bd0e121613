package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/achillean/loggerfs/internal/catalog"
)

// PostgresCapability implements Capability against database/sql's
// "postgres" driver (github.com/lib/pq).
type PostgresCapability struct{}

// pgConnString builds the libpq keyword/value connection string:
// "dbname=… user=… password=… host=…[ port=…]". Unlike the original,
// every value is quoted so whitespace or special characters in a
// password or hostname can't corrupt the string.
func pgConnString(ep catalog.Endpoint) string {
	var b strings.Builder
	writeKV(&b, "dbname", ep.Database)
	writeKV(&b, "user", ep.Username)
	writeKV(&b, "password", ep.Password)
	writeKV(&b, "host", ep.Server)
	if ep.Port > 0 {
		writeKV(&b, "port", strconv.Itoa(ep.Port))
	}
	return strings.TrimSpace(b.String())
}

func writeKV(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString("='")
	b.WriteString(strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value))
	b.WriteString("' ")
}

func (PostgresCapability) Connect(ctx context.Context, ep catalog.Endpoint) (*sql.DB, error) {
	db, err := sql.Open("postgres", pgConnString(ep))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (PostgresCapability) ProbeTable(ctx context.Context, db *sql.DB, table string) bool {
	_, err := db.ExecContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", table))
	return err == nil
}

func (PostgresCapability) CreateTable(ctx context.Context, db *sql.DB, stmt string) error {
	_, err := db.ExecContext(ctx, stmt)
	return err
}

func (PostgresCapability) Insert(ctx context.Context, db *sql.DB, stmt string) error {
	_, err := db.ExecContext(ctx, stmt)
	return err
}
