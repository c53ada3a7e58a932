package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// TableDef describes a table whose columns all hold text.
type TableDef struct {
	// Table is the destination name, optionally schema-qualified.
	Table   string
	Columns []string
}

// Validate checks that the definition can be rendered.
func (t TableDef) Validate() error {
	if strings.TrimSpace(t.Table) == "" {
		return fmt.Errorf("storage: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("storage: table %s needs at least one column", t.Table)
	}
	for i, c := range t.Columns {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("storage: table %s: column %d has an empty name", t.Table, i)
		}
	}
	return nil
}

// DDLBootstrapper creates the table described by def through repo when it
// does not exist yet.
type DDLBootstrapper func(ctx context.Context, repo Repository, def TableDef) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the bootstrapper for kind. Backends call
// it from init.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable runs the bootstrapper registered for kind.
func EnsureTable(ctx context.Context, kind string, repo Repository, def TableDef) error {
	if err := def.Validate(); err != nil {
		return err
	}
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("storage: no DDL bootstrapper registered for kind %q", kind)
	}
	return fn(ctx, repo, def)
}

// QuoteFQN splits a possibly schema-qualified name on '.' and quotes each
// segment with quote.
func QuoteFQN(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

// ColumnList renders "<q(c1)> <typ>,\n  <q(c2)> <typ>..." for a CREATE TABLE
// body.
func ColumnList(cols []string, quote func(string) string, typ string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = quote(c) + " " + typ
	}
	return strings.Join(parts, ",\n  ")
}
