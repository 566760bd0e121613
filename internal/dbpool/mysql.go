package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/achillean/loggerfs/internal/catalog"
)

// MySQLCapability implements Capability against database/sql's "mysql"
// driver (github.com/go-sql-driver/mysql), using its native Config
// struct rather than a hand-built DSN string.
type MySQLCapability struct{}

func mysqlConfig(ep catalog.Endpoint) *mysql.Config {
	port := ep.Port
	if port == 0 {
		port = 3306
	}
	return &mysql.Config{
		Net:    "tcp",
		Addr:   net.JoinHostPort(ep.Server, strconv.Itoa(port)),
		User:   ep.Username,
		Passwd: ep.Password,
		DBName: ep.Database,
	}
}

func (MySQLCapability) Connect(ctx context.Context, ep catalog.Endpoint) (*sql.DB, error) {
	// The original had a port-handling asymmetry: table creation passed
	// the configured port, but ingestion's connect path always passed 0.
	// mysqlConfig always fills in the configured port, defaulted if unset.
	db, err := sql.Open("mysql", mysqlConfig(ep).FormatDSN())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (MySQLCapability) ProbeTable(ctx context.Context, db *sql.DB, table string) bool {
	_, err := db.ExecContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", table))
	return err == nil
}

func (MySQLCapability) CreateTable(ctx context.Context, db *sql.DB, stmt string) error {
	_, err := db.ExecContext(ctx, stmt)
	return err
}

func (MySQLCapability) Insert(ctx context.Context, db *sql.DB, stmt string) error {
	_, err := db.ExecContext(ctx, stmt)
	return err
}
