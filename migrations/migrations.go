// Package migrations carries the Postgres schema for the ledger_slots
// backend and applies it. The schema_migrations table uses the
// golang-migrate layout (bigint version + dirty flag) so the two tools are
// interchangeable.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed *.up.sql
var files embed.FS

// Files returns the embedded migration files.
func Files() fs.FS { return files }

// Apply runs every *.up.sql file in fsys that is not yet recorded as clean
// in schema_migrations, in file name order. It returns how many ran.
func Apply(ctx context.Context, db *pgxpool.Pool, fsys fs.FS, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version bigint NOT NULL,
			dirty   boolean NOT NULL,
			PRIMARY KEY (version)
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		ver, err := Version(name)
		if err != nil {
			return applied, fmt.Errorf("parse version from %s: %w", name, err)
		}

		var done bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1 AND dirty = false)`,
			ver,
		).Scan(&done); err != nil {
			return applied, fmt.Errorf("check %s: %w", name, err)
		}
		if done {
			logger.Debug("migration already applied", zap.String("file", name))
			continue
		}

		sql, err := fs.ReadFile(fsys, name)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", name, err)
		}

		// Mark dirty first so a crash mid-apply stays visible.
		if _, err := db.Exec(ctx,
			`INSERT INTO schema_migrations (version, dirty) VALUES ($1, true)
			 ON CONFLICT (version) DO UPDATE SET dirty = true`, ver,
		); err != nil {
			return applied, fmt.Errorf("mark dirty %s: %w", name, err)
		}
		if _, err := db.Exec(ctx, string(sql)); err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := db.Exec(ctx,
			`UPDATE schema_migrations SET dirty = false WHERE version = $1`, ver,
		); err != nil {
			return applied, fmt.Errorf("mark clean %s: %w", name, err)
		}

		logger.Info("migration applied", zap.String("file", name), zap.Int64("version", ver))
		applied++
	}
	return applied, nil
}

// Version extracts the leading integer of a migration file name:
// "001_ledger_slots.up.sql" is version 1.
func Version(filename string) (int64, error) {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok || prefix == "" {
		return 0, fmt.Errorf("migration file %q has no numeric prefix", filename)
	}
	return strconv.ParseInt(prefix, 10, 64)
}
