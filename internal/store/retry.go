package store

import (
	"context"
	"fmt"
	"time"
)

// InsertRetry enqueues a new retry entry (§3, §4.6).
func (s *Store) InsertRetry(ctx context.Context, e *RetryEntry) error {
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `INSERT INTO retry_queue
		(opcode, payload, attempt_count, next_retry_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(e.Opcode), e.Payload, e.AttemptCount, e.NextRetryAt.Unix(), e.LastError, e.CreatedAt.Unix(), e.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("inserting retry entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted retry id: %w", err)
	}
	e.ID = id
	return nil
}

// ListDue returns up to limit retry rows whose next_retry_at has passed,
// FIFO by next_retry_at, implementing §4.6's "bounded batch of 50 rows per
// drain".
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]RetryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, opcode, payload, attempt_count, next_retry_at, last_error, created_at, updated_at
		FROM retry_queue WHERE next_retry_at <= ? ORDER BY next_retry_at ASC LIMIT ?`, now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing due retry entries: %w", err)
	}
	defer rows.Close()

	var out []RetryEntry
	for rows.Next() {
		var (
			e                             RetryEntry
			opcode                        string
			lastError                     *string
			nextRetryAt, createdAt, updatedAt int64
		)
		if err := rows.Scan(&e.ID, &opcode, &e.Payload, &e.AttemptCount, &nextRetryAt, &lastError, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning retry row: %w", err)
		}
		e.Opcode = RetryOpcode(opcode)
		if lastError != nil {
			e.LastError = *lastError
		}
		e.NextRetryAt = time.Unix(nextRetryAt, 0).UTC()
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteRetry removes a retry row — used both on success and on discard
// after max attempts (§4.6, §8 invariant 7: attempt_count only increases,
// and once attempt_count >= max_retry the row is absent).
func (s *Store) DeleteRetry(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM retry_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting retry entry %d: %w", id, err)
	}
	return nil
}

// RescheduleRetry increments attempt_count and pushes next_retry_at forward,
// recording the latest error.
func (s *Store) RescheduleRetry(ctx context.Context, id int64, nextRetryAt time.Time, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE retry_queue SET attempt_count = attempt_count + 1, next_retry_at = ?, last_error = ?, updated_at = ? WHERE id = ?",
		nextRetryAt.Unix(), lastError, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("rescheduling retry entry %d: %w", id, err)
	}
	return nil
}
