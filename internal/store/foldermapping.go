package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetFolderByLocalDir returns the folder mapping for a local relative
// directory, or ErrNotFound.
func (s *Store) GetFolderByLocalDir(ctx context.Context, localDir string) (*FolderMapping, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, local_dir, remote_id FROM folder_mappings WHERE local_dir = ?", localDir)
	var m FolderMapping
	if err := row.Scan(&m.ID, &m.LocalDir, &m.RemoteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying folder mapping by local dir: %w", err)
	}
	return &m, nil
}

// GetFolderByRemoteID returns the folder mapping for a remote folder id, or
// ErrNotFound.
func (s *Store) GetFolderByRemoteID(ctx context.Context, remoteID string) (*FolderMapping, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, local_dir, remote_id FROM folder_mappings WHERE remote_id = ?", remoteID)
	var m FolderMapping
	if err := row.Scan(&m.ID, &m.LocalDir, &m.RemoteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying folder mapping by remote id: %w", err)
	}
	return &m, nil
}

// ListFolders returns every folder mapping.
func (s *Store) ListFolders(ctx context.Context) ([]FolderMapping, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, local_dir, remote_id FROM folder_mappings")
	if err != nil {
		return nil, fmt.Errorf("listing folder mappings: %w", err)
	}
	defer rows.Close()

	var out []FolderMapping
	for rows.Next() {
		var m FolderMapping
		if err := rows.Scan(&m.ID, &m.LocalDir, &m.RemoteID); err != nil {
			return nil, fmt.Errorf("scanning folder mapping row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteFolderMapping removes a folder mapping row outright, used by P8
// cleanup after the remote folder itself has been deleted.
func (s *Store) DeleteFolderMapping(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM folder_mappings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting folder mapping %d: %w", id, err)
	}
	return nil
}

// UpsertFolderMapping inserts or updates a (local_dir, remote_id) pair.
func (s *Store) UpsertFolderMapping(ctx context.Context, localDir, remoteID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO folder_mappings (local_dir, remote_id) VALUES (?, ?)
		ON CONFLICT(local_dir) DO UPDATE SET remote_id = excluded.remote_id`, localDir, remoteID)
	if err != nil {
		return fmt.Errorf("upserting folder mapping %s -> %s: %w", localDir, remoteID, err)
	}
	return nil
}
