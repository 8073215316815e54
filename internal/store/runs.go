package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TryStart opens a new run of the given kind. The partial unique index on
// running runs makes this a single atomic check-and-set: if any process
// already holds a running run of the same kind the insert fails and
// ErrBusy is returned.
func (s *Store) TryStart(ctx context.Context, kind RunKind) (*Run, error) {
	if kind != RunKindCollection && kind != RunKindGeneration {
		return nil, fmt.Errorf("try start: unknown run kind %q", kind)
	}
	now := time.Now().UTC()
	run := &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    RunStatusRunning,
		StartedAt: now,
	}
	_, err := s.execWithRetry(ctx,
		"INSERT INTO runs (id, kind, status, started_at, heartbeat_at) VALUES (?, ?, ?, ?, ?)",
		run.ID, string(kind), string(RunStatusRunning), formatTime(now), formatTime(now))
	if err != nil {
		if isSQLiteConstraint(err) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, kind)
		}
		return nil, fmt.Errorf("try start: %w", err)
	}
	heartbeat := now
	run.HeartbeatAt = &heartbeat
	return run, nil
}

// HeartbeatRun refreshes the heartbeat timestamp of a running run.
func (s *Store) HeartbeatRun(ctx context.Context, runID string) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE runs SET heartbeat_at = ? WHERE id = ? AND status = ?",
		formatTime(time.Now().UTC()), runID, string(RunStatusRunning))
	if err != nil {
		return fmt.Errorf("heartbeat run: %w", err)
	}
	return nil
}

// SetRunCounts records collection counters on a run.
func (s *Store) SetRunCounts(ctx context.Context, runID string, collected, newItems int64) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE runs SET items_collected = ?, items_new = ? WHERE id = ?",
		collected, newItems, runID)
	if err != nil {
		return fmt.Errorf("set run counts: %w", err)
	}
	return nil
}

// FinishRun moves a running run to a terminal status. Finishing an
// already-finished run with the same status is a no-op; with a different
// status it returns ErrAlreadyFinished.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, reason, message string) error {
	if status != RunStatusSucceeded && status != RunStatusFailed {
		return fmt.Errorf("finish run: %q is not a terminal status", status)
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE runs SET status = ?, finished_at = ?, error_reason = ?, message = ? WHERE id = ? AND status = ?",
		string(status), formatTime(time.Now().UTC()), nullableString(reason), nullableString(message), runID, string(RunStatusRunning))
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	existing, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if existing.Status == status {
		return nil
	}
	return fmt.Errorf("%w: run %s is %s", ErrAlreadyFinished, runID, existing.Status)
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ReapStaleRuns fails running runs whose heartbeat (or start, when no
// heartbeat was ever written) is older than the grace period. The reaped
// runs are returned so callers can log them.
func (s *Store) ReapStaleRuns(ctx context.Context, grace time.Duration) ([]*Run, error) {
	if grace <= 0 {
		return nil, errors.New("reap stale runs: grace must be positive")
	}
	cutoff := time.Now().UTC().Add(-grace)

	var reaped []*Run
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT "+runColumns+" FROM runs WHERE status = ? AND COALESCE(heartbeat_at, started_at) < ?",
			string(RunStatusRunning), formatTime(cutoff))
		if err != nil {
			return fmt.Errorf("select stale runs: %w", err)
		}
		defer rows.Close()

		var stale []*Run
		for rows.Next() {
			run, err := scanRun(rows)
			if err != nil {
				return fmt.Errorf("scan stale run: %w", err)
			}
			stale = append(stale, run)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate stale runs: %w", err)
		}

		now := time.Now().UTC()
		for _, run := range stale {
			_, err := tx.ExecContext(ctx,
				"UPDATE runs SET status = ?, finished_at = ?, error_reason = ?, message = ? WHERE id = ? AND status = ?",
				string(RunStatusFailed), formatTime(now), ReasonStale, "no heartbeat within grace period", run.ID, string(RunStatusRunning))
			if err != nil {
				return fmt.Errorf("reap run %s: %w", run.ID, err)
			}
			run.Status = RunStatusFailed
			run.ErrorReason = ReasonStale
			finished := now
			run.FinishedAt = &finished
		}
		reaped = stale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reaped, nil
}

// LastSuccessfulRun returns the most recent succeeded run of a kind, or
// nil when the kind has never succeeded.
func (s *Store) LastSuccessfulRun(ctx context.Context, kind RunKind) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE kind = ? AND status = ? ORDER BY finished_at DESC LIMIT 1",
		string(kind), string(RunStatusSucceeded))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last successful run: %w", err)
	}
	return run, nil
}

// RecentRuns returns runs ordered most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RunningRuns returns currently running runs for the status surface.
func (s *Store) RunningRuns(ctx context.Context) ([]*Run, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE status = ? ORDER BY started_at ASC",
		string(RunStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("running runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
