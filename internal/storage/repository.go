// Package storage holds the backend-agnostic contracts for loading the split
// table into a database: a Repository interface, a factory keyed by storage
// kind, DDL bootstrappers and a batched loader.
//
// Concrete backends live in subpackages and register themselves in init;
// import storage/all to enable every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is the minimal surface the loader needs from a backend.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns and returns the number of
	// rows the backend reports as inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	// Close releases the connection pool.
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind  string // "postgres", "sqlite", "mssql", "mysql"
	DSN   string
	Table string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind. Backends call it
// from init.
func Register(kind string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	factoryMu.RLock()
	f, ok := factories[cfg.Kind]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered storage kinds in sorted order.
func Kinds() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
