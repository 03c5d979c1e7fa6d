// Package kvstore provides the key-value slots the item ledger persists into.
//
// Every backend stores one opaque value per key and overwrites it in full on
// Put; there is no partial update. Four implementations are provided:
//   - Memory: in-process, for tests and throwaway runs.
//   - Bolt: a single bbolt file, the default for a standalone server.
//   - SQLite: a single SQLite file (pure Go driver).
//   - Postgres: a shared database, for several server replicas.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a durable (or in-memory) key-value slot store.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Close releases the underlying resources.
	Close() error
}

// Supported driver names for Open.
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Driver string // memory, bolt, sqlite or postgres
	Path   string // file path for bolt and sqlite
	DSN    string // connection string for postgres
}

// Open creates the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverBolt, "bbolt", "":
		return OpenBolt(cfg.Path)
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	case DriverPostgres, "postgresql":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("kvstore: key is required")
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
