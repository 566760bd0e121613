package dbpool

import (
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

// fakeDriver backs FakeCapability with an in-process database/sql driver,
// so Pool.Acquire exercises a real *sql.DB without a network dependency.
// There's no mocking library in the corpus for database/sql, so this is
// hand-rolled against the driver interfaces the standard library defines.
type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) { return &fakeConn{}, nil }

var registerFakeDriverOnce sync.Once

func registerFakeDriver() {
	registerFakeDriverOnce.Do(func() {
		sql.Register("loggerfs_fake", fakeDriver{})
	})
}

type fakeConn struct{}

func (*fakeConn) Prepare(query string) (driver.Stmt, error) { return &fakeStmt{query: query}, nil }
func (*fakeConn) Close() error                              { return nil }
func (*fakeConn) Begin() (driver.Tx, error)                 { return nil, driver.ErrSkip }

type fakeStmt struct{ query string }

func (*fakeStmt) Close() error  { return nil }
func (*fakeStmt) NumInput() int { return -1 }
func (*fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}
func (*fakeStmt) Query(args []driver.Value) (driver.Rows, error) { return &fakeRows{}, nil }

type fakeRows struct{}

func (*fakeRows) Columns() []string              { return nil }
func (*fakeRows) Close() error                   { return nil }
func (*fakeRows) Next(dest []driver.Value) error { return io.EOF }
