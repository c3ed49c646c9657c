// Package store owns the sqlite schema and connection setup: a single
// writer connection per spec.md §4.9's "only the writer touches
// storage" discipline, configured with WAL journaling so the
// out-of-scope read API (consuming internal/query) can read
// concurrently without blocking on the writer.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrBusy is the sentinel the writer matches against with errors.Is to
// distinguish a transient lock/contention failure (retry up to 3 times)
// from a permanent one (abandon and log).
var ErrBusy = errors.New("store: database busy")

// Open opens the sqlite database at path, applies the WAL/NORMAL/MEMORY
// pragmas spec.md §4.9 requires, and creates the schema if absent.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single writer owns this handle; one open connection avoids
	// sqlite's "database is locked" surfacing from our own goroutines
	// fighting each other instead of from real external contention.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, nil
}

// ClassifyError maps a raw driver error to ErrBusy when it reports the
// sqlite "database is locked"/"database is busy" condition, leaving
// everything else as-is for errors.Is/As callers to treat as permanent.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "locked") || strings.Contains(msg, "busy") {
		return fmt.Errorf("%w: %s", ErrBusy, err)
	}
	return err
}
