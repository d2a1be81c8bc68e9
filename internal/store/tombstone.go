package store

import (
	"context"
	"fmt"
	"time"
)

// InsertTombstone appends an audit row recording a side-delete or a vanished
// remote resource, before the corresponding FileMapping (if any) is marked
// deleted (§3, §8 invariant 3).
func (s *Store) InsertTombstone(ctx context.Context, t *Tombstone) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO tombstones (side, local_path, remote_id, reason, created_at) VALUES (?, ?, ?, ?, ?)",
		string(t.Side), t.LocalPath, t.RemoteID, t.Reason, t.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("inserting tombstone: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted tombstone id: %w", err)
	}
	t.ID = id
	return nil
}

// ListTombstones returns every tombstone, oldest first, for observability
// and for tests asserting invariant 3.
func (s *Store) ListTombstones(ctx context.Context) ([]Tombstone, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, side, local_path, remote_id, reason, created_at FROM tombstones ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing tombstones: %w", err)
	}
	defer rows.Close()

	var out []Tombstone
	for rows.Next() {
		var (
			t          Tombstone
			side       string
			localPath  *string
			remoteID   *string
			createdAt  int64
		)
		if err := rows.Scan(&t.ID, &side, &localPath, &remoteID, &t.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning tombstone row: %w", err)
		}
		t.Side = TombstoneSide(side)
		if localPath != nil {
			t.LocalPath = *localPath
		}
		if remoteID != nil {
			t.RemoteID = *remoteID
		}
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}
