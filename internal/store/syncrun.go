package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StartRun inserts a new running SyncRun row, tagged with the caller's
// correlation runID, and returns the row's autoincrement id.
func (s *Store) StartRun(ctx context.Context, runID, runType string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO sync_runs (run_id, run_type, status, started_at) VALUES (?, ?, ?, ?)",
		runID, runType, string(RunRunning), startedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("starting sync run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun records the terminal status and summary document for a run.
func (s *Store) FinishRun(ctx context.Context, id int64, status RunStatus, finishedAt time.Time, summaryJSON string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE sync_runs SET status = ?, finished_at = ?, summary_json = ? WHERE id = ?",
		string(status), finishedAt.Unix(), summaryJSON, id)
	if err != nil {
		return fmt.Errorf("finishing sync run %d: %w", id, err)
	}
	return nil
}

// LastRun returns the most recently started run, or ErrNotFound.
func (s *Store) LastRun(ctx context.Context) (*SyncRun, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, run_id, run_type, status, started_at, finished_at, summary_json FROM sync_runs ORDER BY id DESC LIMIT 1")

	var (
		r          SyncRun
		status     string
		startedAt  int64
		finishedAt sql.NullInt64
		summary    sql.NullString
	)
	if err := row.Scan(&r.ID, &r.RunID, &r.RunType, &status, &startedAt, &finishedAt, &summary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying last run: %w", err)
	}

	r.Status = RunStatus(status)
	r.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		r.FinishedAt = &t
	}
	if summary.Valid {
		r.SummaryJSON = summary.String
	}
	return &r, nil
}
