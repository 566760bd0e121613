package refresh

import (
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) { return &fakeConn{}, nil }

var registerOnce sync.Once

func registerFakeDriver() {
	registerOnce.Do(func() { sql.Register("refresh_fake", fakeDriver{}) })
}

type fakeConn struct{}

func (*fakeConn) Prepare(q string) (driver.Stmt, error) { return &fakeStmt{}, nil }
func (*fakeConn) Close() error                          { return nil }
func (*fakeConn) Begin() (driver.Tx, error)             { return nil, driver.ErrSkip }

type fakeStmt struct{}

func (*fakeStmt) Close() error                                    { return nil }
func (*fakeStmt) NumInput() int                                   { return -1 }
func (*fakeStmt) Exec(args []driver.Value) (driver.Result, error) { return driver.RowsAffected(1), nil }
func (*fakeStmt) Query(args []driver.Value) (driver.Rows, error)  { return &fakeRows{}, nil }

type fakeRows struct{}

func (*fakeRows) Columns() []string              { return nil }
func (*fakeRows) Close() error                   { return nil }
func (*fakeRows) Next(dest []driver.Value) error { return io.EOF }
