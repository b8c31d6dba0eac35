package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const runColumns = "id, source_ref, status, descriptor_json, platform_id, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, last_heartbeat"

// NewRun inserts a pending run for a source reference.
func (s *Store) NewRun(ctx context.Context, sourceRef string) (*Run, error) {
	if sourceRef == "" {
		return nil, errors.New("source reference is empty")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO runs (
            id, source_ref, status, created_at, updated_at, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		sourceRef,
		StatusPending,
		timestamp,
		timestamp,
		0.0,
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return s.GetRun(ctx, id)
}

// GetRun fetches a run by identifier. It returns nil when no run matches.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// UpdateRun persists changes to an existing run.
func (s *Store) UpdateRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE runs
         SET source_ref = ?, status = ?, descriptor_json = ?, platform_id = ?,
             error_message = ?, updated_at = ?, progress_stage = ?,
             progress_percent = ?, progress_message = ?, last_heartbeat = ?
         WHERE id = ?`,
		run.SourceRef,
		run.Status,
		nullableString(run.DescriptorJSON),
		nullableString(run.PlatformID),
		nullableString(run.ErrorMessage),
		run.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(run.ProgressStage),
		run.ProgressPercent,
		nullableString(run.ProgressMessage),
		nullableTime(run.LastHeartbeat),
		run.ID,
	); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// ListRuns returns runs filtered by status set (or all runs when no status is
// provided), ordered by creation time.
func (s *Store) ListRuns(ctx context.Context, statuses ...RunStatus) ([]*Run, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + runColumns + ` FROM runs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ClaimNext atomically claims the oldest run awaiting work: a pending run or
// one parked at a durable stage boundary without a live heartbeat. The run is
// moved to the processing status of its next stage so concurrent workers
// never claim it twice. It returns nil when nothing is claimable.
func (s *Store) ClaimNext(ctx context.Context, heartbeatStale time.Duration) (*Run, Stage, error) {
	ctx = ensureContext(ctx)

	var claimed *Run
	var stage Stage
	err := retryOnBusy(ctx, func() error {
		claimed, stage = nil, ""

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		statuses := make([]any, 0, len(claimableNextStage))
		for status := range claimableNextStage {
			statuses = append(statuses, status)
		}
		cutoff := time.Now().UTC().Add(-heartbeatStale).Format(time.RFC3339Nano)

		query := `SELECT ` + runColumns + ` FROM runs
             WHERE status IN (` + makePlaceholders(len(statuses)) + `)
               AND (last_heartbeat IS NULL OR last_heartbeat < ?)
             ORDER BY created_at LIMIT 1`
		row := tx.QueryRowContext(ctx, query, append(statuses, cutoff)...)
		run, err := scanRun(row)
		if errors.Is(err, sql.ErrNoRows) {
			return tx.Commit()
		}
		if err != nil {
			return fmt.Errorf("select claimable run: %w", err)
		}

		next, ok := NextStage(run.Status)
		if !ok {
			return fmt.Errorf("run %s status %s is not claimable", run.ID, run.Status)
		}

		now := time.Now().UTC()
		timestamp := now.Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, updated_at = ?, last_heartbeat = ? WHERE id = ?`,
			ProcessingStatus(next), timestamp, timestamp, run.ID,
		); err != nil {
			return fmt.Errorf("claim run: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}

		run.Status = ProcessingStatus(next)
		run.UpdatedAt = now
		run.LastHeartbeat = &now
		claimed, stage = run, next
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return claimed, stage, nil
}

// Heartbeat refreshes a run's claim timestamp.
func (s *Store) Heartbeat(ctx context.Context, id string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE runs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		timestamp, timestamp, id,
	); err != nil {
		return fmt.Errorf("heartbeat run: %w", err)
	}
	return nil
}
