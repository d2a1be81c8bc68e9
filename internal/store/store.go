package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store wraps the embedded SQLite database, matching the teacher's
// SQLiteStore: WAL mode, single-writer discipline, and queries grouped by
// domain into one file each (file_mappings, folder_mappings, tombstones,
// retry queue, sync runs).
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (creating if absent) the database at path and applies pragmas
// and pending migrations. Statements are not prepared in advance; each
// method passes its SQL to the handle when it runs.
// Pass ":memory:" for tests, matching the teacher's convention.
func New(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state store %s: %w", path, err)
	}

	// A single writer owns this handle (the engine's run thread); WAL lets
	// observability readers open their own handle concurrently without
	// blocking writes, matching §4.2/§5's store discipline.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_size_limit=67108864",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating state store: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Open returns a fresh handle, separate from the writer's, for
// observability readers (§4.2, §5). The handle is opened with the driver's
// default flags, not in read-only mode.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening read handle %s: %w", path, err)
	}
	return db, nil
}
