// Package matcher implements the Line Matcher component: it applies a
// LogMount's schemas, in order, to a single trimmed line and yields one
// CaptureBinding slice per schema that fully matches.
package matcher

import (
	"strings"

	"github.com/achillean/loggerfs/internal/catalog"
)

// CaptureBinding is a transient (column name, captured text) pair
// produced by a successful match. Its lifetime is at most one write
// call — nothing retains it past building the SQL insert.
type CaptureBinding struct {
	Column string
	Value  string
}

// Result pairs the schema that matched with its ordered bindings.
type Result struct {
	Schema   *catalog.Schema
	Bindings []CaptureBinding
}

// trimCutset is the whitespace class trimmed from both ends of a line:
// [ \a\b\f\n\r\t\v].
const trimCutset = " \a\b\f\n\r\t\v"

// Trim removes trimCutset characters from both ends of line.
func Trim(line string) string {
	return strings.Trim(line, trimCutset)
}

// Match evaluates every schema m references, in declared order, against
// the already-trimmed line. A schema "matches" when the full line
// matches its compiled regex and the capture count equals the schema's
// column count; anything else is skipped silently. unresolved collects
// schema names referenced by m that no longer exist in cat, so the
// caller can log them.
func Match(line string, m *catalog.LogMount, cat *catalog.Catalog) (results []Result, unresolved []string) {
	for _, name := range m.Schemas {
		schema, ok := cat.LookupSchema(name)
		if !ok {
			unresolved = append(unresolved, name)
			continue
		}
		groups := schema.Regex.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		captures := groups[1:]
		if len(captures) != len(schema.Columns) {
			continue
		}
		bindings := make([]CaptureBinding, len(schema.Columns))
		for i, col := range schema.Columns {
			bindings[i] = CaptureBinding{Column: col, Value: captures[i]}
		}
		results = append(results, Result{Schema: schema, Bindings: bindings})
	}
	return results, unresolved
}
