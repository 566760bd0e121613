package catalog

import "sort"

// Catalog is the immutable, in-memory union of all schemas and mounts in
// force. It is never mutated in place; a refresh builds a new Catalog and
// the caller atomically swaps the pointer (see internal/refresh). Its
// methods take no lock of their own; internal/refresh guards the pointer
// with an RWMutex read lease.
type Catalog struct {
	schemas map[string]*Schema
	mounts  map[string]*LogMount
	order   []string // mount paths in config/insertion order, for readdir
}

// New builds a Catalog from already-validated schemas and mounts. order
// must list every key of mounts exactly once and determines iteration
// order.
func New(schemas map[string]*Schema, mounts map[string]*LogMount, order []string) *Catalog {
	c := &Catalog{
		schemas: make(map[string]*Schema, len(schemas)),
		mounts:  make(map[string]*LogMount, len(mounts)),
		order:   append([]string(nil), order...),
	}
	for k, v := range schemas {
		c.schemas[k] = v
	}
	for k, v := range mounts {
		c.mounts[k] = v
	}
	return c
}

// LookupMount returns the LogMount registered at path, if any.
func (c *Catalog) LookupMount(path string) (*LogMount, bool) {
	m, ok := c.mounts[path]
	return m, ok
}

// LookupSchema returns the Schema registered under name, if any.
func (c *Catalog) LookupSchema(name string) (*Schema, bool) {
	s, ok := c.schemas[name]
	return s, ok
}

// IterMounts returns mount paths in stable, insertion order — the order
// readdir reproduces.
func (c *Catalog) IterMounts() []string {
	return append([]string(nil), c.order...)
}

// Mounts returns the Catalog's own mount map, not a copy. Callers must
// treat it as read-only.
func (c *Catalog) Mounts() map[string]*LogMount {
	return c.mounts
}

// ColumnUniverse returns the alphabetically sorted union of column names
// across every schema a mount references, silently skipping schema names
// that do not resolve (not fatal here) — the column set BuildCreateTable
// needs.
func (c *Catalog) ColumnUniverse(m *LogMount) []string {
	seen := make(map[string]struct{})
	for _, name := range m.Schemas {
		s, ok := c.schemas[name]
		if !ok {
			continue
		}
		for _, col := range s.Columns {
			seen[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for c := range seen {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
