//go:build integration

package testharness

import (
	"context"
	"testing"

	"github.com/achillean/loggerfs/internal/catalog"
	"github.com/achillean/loggerfs/internal/dbpool"
	"github.com/achillean/loggerfs/internal/sqlgen"
)

func TestPostgresCapabilityAgainstRealContainer(t *testing.T) {
	BootPostgres(t)
	sbx := NewPostgresSandbox(t)

	pool := dbpool.NewWithBackends(map[catalog.Backend]dbpool.Capability{
		catalog.Postgres: dbpool.PostgresCapability{},
	})
	defer pool.CloseAll()

	mount := &catalog.LogMount{
		Path:    "access",
		Schemas: []string{"any"},
		Backend: catalog.Postgres,
		Endpoint: catalog.Endpoint{
			Server:   sbx.Endpoint.Server,
			Port:     sbx.Endpoint.Port,
			Database: sbx.Endpoint.Database,
			Table:    "access_log",
			Username: sbx.Endpoint.Username,
			Password: sbx.Endpoint.Password,
		},
	}

	ctx := context.Background()
	db, cap, release, err := pool.Acquire(ctx, mount)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if cap.ProbeTable(ctx, db, mount.Endpoint.Table) {
		t.Fatal("ProbeTable: access_log unexpectedly already exists")
	}

	createStmt := sqlgen.BuildCreateTable(mount, []string{"msg"})
	if err := cap.CreateTable(ctx, db, createStmt); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if !cap.ProbeTable(ctx, db, mount.Endpoint.Table) {
		t.Fatal("ProbeTable: access_log missing after CreateTable")
	}

	insertStmt := `INSERT INTO access_log(msg) VALUES ('` + sqlgen.EscapePostgres("hello from the real driver") + `');`
	if err := cap.Insert(ctx, db, insertStmt); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM access_log`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Fatalf("row count = %d, want 1", count)
	}
}

func TestMySQLCapabilityAgainstRealContainer(t *testing.T) {
	BootMySQL(t)
	sbx := NewMySQLSandbox(t)

	pool := dbpool.NewWithBackends(map[catalog.Backend]dbpool.Capability{
		catalog.MySQL: dbpool.MySQLCapability{},
	})
	defer pool.CloseAll()

	mount := &catalog.LogMount{
		Path:    "access",
		Schemas: []string{"any"},
		Backend: catalog.MySQL,
		Endpoint: catalog.Endpoint{
			Server:   sbx.Endpoint.Server,
			Port:     sbx.Endpoint.Port,
			Database: sbx.Endpoint.Database,
			Table:    "access_log",
			Username: sbx.Endpoint.Username,
			Password: sbx.Endpoint.Password,
		},
	}

	ctx := context.Background()
	db, cap, release, err := pool.Acquire(ctx, mount)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if cap.ProbeTable(ctx, db, mount.Endpoint.Table) {
		t.Fatal("ProbeTable: access_log unexpectedly already exists")
	}

	createStmt := sqlgen.BuildCreateTable(mount, []string{"msg"})
	if err := cap.CreateTable(ctx, db, createStmt); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if !cap.ProbeTable(ctx, db, mount.Endpoint.Table) {
		t.Fatal("ProbeTable: access_log missing after CreateTable")
	}

	insertStmt := "INSERT INTO access_log(msg) VALUES ('" + sqlgen.EscapeMySQL("hello from the real driver") + "');"
	if err := cap.Insert(ctx, db, insertStmt); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM access_log`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Fatalf("row count = %d, want 1", count)
	}
}
