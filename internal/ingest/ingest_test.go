package ingest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"regexp"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/achillean/loggerfs/internal/catalog"
	"github.com/achillean/loggerfs/internal/dbpool"
)

// Minimal fake database/sql driver, mirroring internal/dbpool's test
// harness so ingestion tests exercise Pool.Acquire without a real
// database.
type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) { return &fakeConn{}, nil }

var registerOnce sync.Once

func registerFakeDriver() {
	registerOnce.Do(func() { sql.Register("ingest_fake", fakeDriver{}) })
}

type fakeConn struct{}

func (*fakeConn) Prepare(q string) (driver.Stmt, error) { return &fakeStmt{}, nil }
func (*fakeConn) Close() error                          { return nil }
func (*fakeConn) Begin() (driver.Tx, error)             { return nil, driver.ErrSkip }

type fakeStmt struct{}

func (*fakeStmt) Close() error                                        { return nil }
func (*fakeStmt) NumInput() int                                       { return -1 }
func (*fakeStmt) Exec(args []driver.Value) (driver.Result, error)     { return driver.RowsAffected(1), nil }
func (*fakeStmt) Query(args []driver.Value) (driver.Rows, error)      { return &fakeRows{}, nil }

type fakeRows struct{}

func (*fakeRows) Columns() []string              { return nil }
func (*fakeRows) Close() error                   { return nil }
func (*fakeRows) Next(dest []driver.Value) error { return io.EOF }

type recordingCapability struct {
	mu      sync.Mutex
	inserts []string
}

func (c *recordingCapability) Connect(ctx context.Context, ep catalog.Endpoint) (*sql.DB, error) {
	registerFakeDriver()
	return sql.Open("ingest_fake", ep.Database)
}

func (c *recordingCapability) ProbeTable(ctx context.Context, db *sql.DB, table string) bool {
	return true
}

func (c *recordingCapability) CreateTable(ctx context.Context, db *sql.DB, stmt string) error {
	return nil
}

func (c *recordingCapability) Insert(ctx context.Context, db *sql.DB, stmt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inserts = append(c.inserts, stmt)
	_, err := db.ExecContext(ctx, stmt)
	return err
}

func apacheCommonMount(cap dbpool.Capability) (*catalog.LogMount, *catalog.Catalog, *dbpool.Pool) {
	schema := &catalog.Schema{
		Name:    "apache-common",
		Regex:   regexp.MustCompile(`^(?:(\S+) \S+ \S+ \[([^\]]+)\] "([^"]+)" (\d+) (\d+|-))$`),
		Columns: []string{"host", "ts", "request", "status", "size"},
	}
	m := &catalog.LogMount{
		Path:     "access",
		Schemas:  []string{"apache-common"},
		Backend:  catalog.MySQL,
		Endpoint: catalog.Endpoint{Table: "access_log", Database: "logs"},
	}
	cat := catalog.New(map[string]*catalog.Schema{"apache-common": schema}, map[string]*catalog.LogMount{"access": m}, []string{"access"})
	pool := dbpool.NewWithBackends(map[catalog.Backend]dbpool.Capability{catalog.MySQL: cap})
	return m, cat, pool
}

func TestWriteMatchingLineProducesOneInsert(t *testing.T) {
	cap := &recordingCapability{}
	m, cat, pool := apacheCommonMount(cap)
	buf := []byte("10.0.0.1 - - [10/Oct/2000:13:55:36 -0700] \"GET /x HTTP/1.0\" 200 2326\n")

	rows := Write(context.Background(), zap.NewNop(), m, cat, pool, NoopMetrics, buf)
	if rows != 1 {
		t.Fatalf("rowsInserted = %d, want 1", rows)
	}
	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.inserts) != 1 {
		t.Fatalf("len(inserts) = %d, want 1", len(cap.inserts))
	}
	want := `INSERT INTO access_log(host,ts,request,status,size) VALUES ('10.0.0.1','10/Oct/2000:13:55:36 -0700','GET /x HTTP/1.0','200','2326');`
	if cap.inserts[0] != want {
		t.Fatalf("insert = %q, want %q", cap.inserts[0], want)
	}
}

func TestWriteNonMatchingLineProducesNoInsert(t *testing.T) {
	cap := &recordingCapability{}
	m, cat, pool := apacheCommonMount(cap)
	buf := []byte("garbage line\n")

	rows := Write(context.Background(), zap.NewNop(), m, cat, pool, NoopMetrics, buf)
	if rows != 0 {
		t.Fatalf("rowsInserted = %d, want 0", rows)
	}
}

func TestWriteMultiSchemaOnlyMatchingOneInserts(t *testing.T) {
	a := &catalog.Schema{Name: "A", Regex: regexp.MustCompile(`^(?:(\S+) (\S+))$`), Columns: []string{"word", "num"}}
	b := &catalog.Schema{Name: "B", Regex: regexp.MustCompile(`^(?:(\S+) (\S+))$`), Columns: []string{"only_one"}}
	m := &catalog.LogMount{Path: "multi", Schemas: []string{"A", "B"}, Backend: catalog.MySQL, Endpoint: catalog.Endpoint{Table: "t", Database: "d"}}
	cat := catalog.New(map[string]*catalog.Schema{"A": a, "B": b}, map[string]*catalog.LogMount{"multi": m}, []string{"multi"})
	cap := &recordingCapability{}
	pool := dbpool.NewWithBackends(map[catalog.Backend]dbpool.Capability{catalog.MySQL: cap})

	rows := Write(context.Background(), zap.NewNop(), m, cat, pool, NoopMetrics, []byte("foo 1\n"))
	if rows != 1 {
		t.Fatalf("rowsInserted = %d, want 1", rows)
	}
}

func TestWriteCountsOnlyMatchingLinesAmongSeveral(t *testing.T) {
	cap := &recordingCapability{}
	m, cat, pool := apacheCommonMount(cap)
	buf := []byte("garbage\n10.0.0.1 - - [10/Oct/2000:13:55:36 -0700] \"GET /x HTTP/1.0\" 200 2326\nmore garbage\n")

	rows := Write(context.Background(), zap.NewNop(), m, cat, pool, NoopMetrics, buf)
	if rows != 1 {
		t.Fatalf("rowsInserted = %d, want 1 (only one of three lines matches)", rows)
	}
}
