// Package testharness boots ephemeral PostgreSQL and MySQL containers
// for integration tests: one container per process (sync.Once), one
// throwaway database per test. Sandboxes hand back a catalog.Endpoint so
// callers exercise the real internal/dbpool.Capability implementations
// instead of a side-channel *sql.DB.
package testharness

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"database/sql"

	"github.com/achillean/loggerfs/internal/catalog"
	"github.com/achillean/loggerfs/pkg/prng"
)

var (
	pgOnce      sync.Once
	pgContainer *postgres.PostgresContainer
	pgEndpoint  catalog.Endpoint
	pgBootErr   error
)

// BootPostgres starts (once per test binary) a disposable Postgres
// container and records the endpoint new sandboxes connect against.
func BootPostgres(t *testing.T) {
	t.Helper()
	pgOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		container, err := postgres.Run(ctx,
			"docker.io/postgres:16-alpine",
			postgres.WithDatabase("loggerfs"),
			postgres.WithUsername("loggerfs"),
			postgres.WithPassword("loggerfs"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			pgBootErr = err
			return
		}
		pgContainer = container

		host, err := container.Host(ctx)
		if err != nil {
			pgBootErr = err
			return
		}
		port, err := container.MappedPort(ctx, "5432/tcp")
		if err != nil {
			pgBootErr = err
			return
		}
		pgEndpoint = catalog.Endpoint{
			Server:   host,
			Port:     port.Int(),
			Database: "loggerfs",
			Username: "loggerfs",
			Password: "loggerfs",
		}
	})
	if pgBootErr != nil {
		t.Fatalf("testharness: boot postgres: %v", pgBootErr)
	}
}

// PostgresSandbox is a throwaway database inside the shared container,
// dropped on test cleanup.
type PostgresSandbox struct {
	Endpoint catalog.Endpoint
}

// NewPostgresSandbox creates a uniquely-named database and returns the
// Endpoint a LogMount would use to reach it. BootPostgres must already
// have run.
func NewPostgresSandbox(t *testing.T) *PostgresSandbox {
	t.Helper()
	if pgContainer == nil {
		t.Fatalf("testharness: postgres not booted; call BootPostgres in TestMain")
	}

	adminDSN := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		pgEndpoint.Username, pgEndpoint.Password, pgEndpoint.Server, pgEndpoint.Port, pgEndpoint.Database)
	admin, err := sql.Open("pgx", adminDSN)
	if err != nil {
		t.Fatalf("testharness: open admin: %v", err)
	}

	dbName := fmt.Sprintf("t_%x", sandboxSuffix())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, `CREATE DATABASE "`+dbName+`"`); err != nil {
		admin.Close()
		t.Fatalf("testharness: create database: %v", err)
	}

	ep := pgEndpoint
	ep.Database = dbName

	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = admin.ExecContext(dropCtx, `DROP DATABASE IF EXISTS "`+dbName+`" WITH (FORCE)`)
		_ = admin.Close()
	})

	return &PostgresSandbox{Endpoint: ep}
}

// RunGooseUp applies migrations from dir against a sandbox's database,
// for tests that need pre-existing schema rather than loggerfs's own
// CREATE TABLE path.
func RunGooseUp(ep catalog.Endpoint, dir string) error {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		ep.Username, ep.Password, ep.Server, ep.Port, ep.Database)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, dir)
}

// sandboxSuffix derives a unique identifier from a process-random seed
// run through the deterministic PRNG, rather than reading crypto/rand
// for every sandbox.
func sandboxSuffix() uint64 {
	var b [8]byte
	_, _ = prng.New(time.Now().UnixNano()).Read(b[:])
	var v uint64
	for i, c := range b {
		v |= uint64(c) << (8 * i)
	}
	return v
}
