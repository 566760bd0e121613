// Package sqlgen builds CREATE TABLE and INSERT statements from a
// LogMount, its matched schema, and a set of captured values. Both
// functions are pure: same inputs always produce byte-identical SQL.
package sqlgen

import (
	"strings"

	"github.com/achillean/loggerfs/internal/catalog"
	"github.com/achillean/loggerfs/internal/matcher"
)

// idColumn returns the backend-specific opening id column clause.
func idColumn(b catalog.Backend) string {
	switch b {
	case catalog.Postgres:
		return "id serial not null primary key,"
	case catalog.MySQL:
		return "id bigint not null primary key unique auto_increment,"
	default:
		return ""
	}
}

// BuildCreateTable produces the CREATE TABLE statement for m. columns is
// the column universe (e.g. catalog.Catalog.ColumnUniverse(m)) and must
// already be in the stable order the caller wants reproduced — callers
// in this repo pass alphabetically sorted columns.
func BuildCreateTable(m *catalog.LogMount, columns []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(m.Endpoint.Table)
	b.WriteString("(")
	b.WriteString(idColumn(m.Backend))
	b.WriteString("timestamp timestamp default now(),")
	for _, col := range columns {
		b.WriteString(col)
		b.WriteString(" text DEFAULT '' NOT NULL,")
	}
	s := b.String()
	s = strings.TrimSuffix(s, ",")
	s += ");"
	return s
}

// BuildInsert produces the INSERT statement for one matched schema. The
// column list is exactly schema.Columns in declared order; each value is
// escaped by escape (backend-specific) and wrapped in single quotes, so
// no partial or unescaped captured text ever reaches the SQL string.
func BuildInsert(m *catalog.LogMount, result matcher.Result, escape func(string) string) string {
	var cols, vals strings.Builder
	for i, binding := range result.Bindings {
		if i > 0 {
			cols.WriteString(",")
			vals.WriteString(",")
		}
		cols.WriteString(binding.Column)
		vals.WriteString("'")
		vals.WriteString(escape(binding.Value))
		vals.WriteString("'")
	}
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(m.Endpoint.Table)
	b.WriteString("(")
	b.WriteString(cols.String())
	b.WriteString(") VALUES (")
	b.WriteString(vals.String())
	b.WriteString(");")
	return b.String()
}

// EscapePostgres doubles single quotes, the standard-conforming-string
// escaping rule PostgreSQL expects from text concatenated into a query
// rather than bound as a parameter.
func EscapePostgres(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// EscapeMySQL mirrors mysql_real_escape_string's backslash-escaping of
// the characters that can terminate or alter a quoted MySQL string
// literal: \, ', ", NUL, \n, \r, and Ctrl-Z. It works byte by byte, so
// bytes that are not valid UTF-8 pass through unchanged.
func EscapeMySQL(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\', '\'', '"':
			b.WriteByte('\\')
			b.WriteByte(c)
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Escape returns the escape routine for a backend.
func Escape(b catalog.Backend) func(string) string {
	switch b {
	case catalog.MySQL:
		return EscapeMySQL
	default:
		return EscapePostgres
	}
}
