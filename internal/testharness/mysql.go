package testharness

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/achillean/loggerfs/internal/catalog"
)

var (
	myOnce      sync.Once
	myContainer *mysql.MySQLContainer
	myEndpoint  catalog.Endpoint
	myBootErr   error
)

// BootMySQL starts (once per test binary) a disposable MySQL container.
func BootMySQL(t *testing.T) {
	t.Helper()
	myOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()

		container, err := mysql.Run(ctx,
			"mysql:8.0",
			mysql.WithDatabase("loggerfs"),
			mysql.WithUsername("loggerfs"),
			mysql.WithPassword("loggerfs"),
		)
		if err != nil {
			myBootErr = err
			return
		}
		myContainer = container

		host, err := container.Host(ctx)
		if err != nil {
			myBootErr = err
			return
		}
		port, err := container.MappedPort(ctx, "3306/tcp")
		if err != nil {
			myBootErr = err
			return
		}
		myEndpoint = catalog.Endpoint{
			Server:   host,
			Port:     port.Int(),
			Database: "loggerfs",
			Username: "loggerfs",
			Password: "loggerfs",
		}
	})
	if myBootErr != nil {
		t.Fatalf("testharness: boot mysql: %v", myBootErr)
	}
}

// MySQLSandbox is a throwaway database inside the shared container.
type MySQLSandbox struct {
	Endpoint catalog.Endpoint
}

// NewMySQLSandbox creates a uniquely-named database and returns the
// Endpoint a LogMount would use to reach it. BootMySQL must already
// have run.
func NewMySQLSandbox(t *testing.T) *MySQLSandbox {
	t.Helper()
	if myContainer == nil {
		t.Fatalf("testharness: mysql not booted; call BootMySQL in TestMain")
	}

	adminCfg := mysqldriver.NewConfig()
	adminCfg.Net = "tcp"
	adminCfg.Addr = fmt.Sprintf("%s:%d", myEndpoint.Server, myEndpoint.Port)
	adminCfg.User = myEndpoint.Username
	adminCfg.Passwd = myEndpoint.Password
	adminCfg.DBName = myEndpoint.Database

	admin, err := sql.Open("mysql", adminCfg.FormatDSN())
	if err != nil {
		t.Fatalf("testharness: open admin: %v", err)
	}

	dbName := fmt.Sprintf("t_%x", sandboxSuffix())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE DATABASE `"+dbName+"`"); err != nil {
		admin.Close()
		t.Fatalf("testharness: create database: %v", err)
	}

	ep := myEndpoint
	ep.Database = dbName

	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = admin.ExecContext(dropCtx, "DROP DATABASE IF EXISTS `"+dbName+"`")
		_ = admin.Close()
	})

	return &MySQLSandbox{Endpoint: ep}
}
