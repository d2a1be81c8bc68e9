package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

func scanFileMapping(row interface{ Scan(...any) error }) (*FileMapping, error) {
	var (
		m                          FileMapping
		status                     string
		conflict                   int
		localMTime, remoteModified int64
		lastSynced                 int64
	)
	if err := row.Scan(&m.ID, &m.LocalPath, &m.RemoteID, &m.RemoteKind, &m.LocalHash, &m.RemoteHash,
		&localMTime, &remoteModified, &status, &conflict, &lastSynced); err != nil {
		return nil, err
	}
	m.Status = MappingStatus(status)
	m.Conflict = conflict != 0
	m.LocalMTime = time.Unix(localMTime, 0).UTC()
	m.RemoteModified = time.Unix(remoteModified, 0).UTC()
	m.LastSyncedAt = time.Unix(lastSynced, 0).UTC()
	return &m, nil
}

const fileMappingColumns = "id, local_path, remote_id, remote_kind, local_hash, remote_hash, local_mtime, remote_modified, status, conflict, last_synced_at"

// GetByLocalPath returns the live (non-deleted) mapping for a local path, or
// ErrNotFound.
func (s *Store) GetByLocalPath(ctx context.Context, localPath string) (*FileMapping, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+fileMappingColumns+" FROM file_mappings WHERE local_path = ? AND status != 'deleted'", localPath)
	m, err := scanFileMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying mapping by local path: %w", err)
	}
	return m, nil
}

// GetByRemoteID returns the live mapping for a remote id, or ErrNotFound.
func (s *Store) GetByRemoteID(ctx context.Context, remoteID string) (*FileMapping, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+fileMappingColumns+" FROM file_mappings WHERE remote_id = ? AND status != 'deleted'", remoteID)
	m, err := scanFileMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying mapping by remote id: %w", err)
	}
	return m, nil
}

// ListLive returns every non-deleted mapping.
func (s *Store) ListLive(ctx context.Context) ([]FileMapping, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+fileMappingColumns+" FROM file_mappings WHERE status != 'deleted'")
	if err != nil {
		return nil, fmt.Errorf("listing live mappings: %w", err)
	}
	defer rows.Close()

	var out []FileMapping
	for rows.Next() {
		m, err := scanFileMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning mapping row: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// UpsertFileMapping implements §4.2's upsert semantics: lookup by local path
// first, then by remote id; update in place on either match, else insert.
// This guarantees the uniqueness invariants hold even when a rename changes
// local path or remote id one side at a time.
func (s *Store) UpsertFileMapping(ctx context.Context, m *FileMapping) error {
	now := time.Now()
	if m.LastSyncedAt.IsZero() {
		m.LastSyncedAt = now
	}

	existing, err := s.GetByLocalPath(ctx, m.LocalPath)
	if errors.Is(err, ErrNotFound) {
		existing, err = s.GetByRemoteID(ctx, m.RemoteID)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("looking up existing mapping: %w", err)
	}

	if existing != nil {
		_, err := s.db.ExecContext(ctx, `UPDATE file_mappings SET
			local_path = ?, remote_id = ?, remote_kind = ?, local_hash = ?, remote_hash = ?,
			local_mtime = ?, remote_modified = ?, status = ?, conflict = ?, last_synced_at = ?
			WHERE id = ?`,
			m.LocalPath, m.RemoteID, m.RemoteKind, m.LocalHash, m.RemoteHash,
			m.LocalMTime.Unix(), m.RemoteModified.Unix(), string(m.Status), boolToInt(m.Conflict), m.LastSyncedAt.Unix(),
			existing.ID)
		if err != nil {
			return fmt.Errorf("updating mapping %d: %w", existing.ID, err)
		}
		m.ID = existing.ID
		return nil
	}

	if m.Status == "" {
		m.Status = StatusActive
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO file_mappings
		(local_path, remote_id, remote_kind, local_hash, remote_hash, local_mtime, remote_modified, status, conflict, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.LocalPath, m.RemoteID, m.RemoteKind, m.LocalHash, m.RemoteHash,
		m.LocalMTime.Unix(), m.RemoteModified.Unix(), string(m.Status), boolToInt(m.Conflict), m.LastSyncedAt.Unix())
	if err != nil {
		return fmt.Errorf("inserting mapping: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted mapping id: %w", err)
	}
	m.ID = id
	return nil
}

// MarkDeleted transitions a mapping to status=deleted. Callers must write
// the corresponding Tombstone first (§3 "tombstone precedes deletion",
// invariant 3 in §8); this method does not do so itself.
func (s *Store) MarkDeleted(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE file_mappings SET status = 'deleted' WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking mapping %d deleted: %w", id, err)
	}
	return nil
}

// MappingCounts returns the number of file_mappings rows grouped by status,
// for the CLI's status command.
func (s *Store) MappingCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM file_mappings GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting mappings: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning mapping count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
