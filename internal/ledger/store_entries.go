package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const entryColumns = "id, run_id, stage, attempt, outcome, input_fingerprints, output_fingerprint, model_version, error_message, started_at, finished_at"

// Append inserts a new ledger entry. Entries are append-only: there is no
// update or delete path, and identifiers are assigned monotonically by the
// database.
func (s *Store) Append(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	if entry.RunID == "" {
		return errors.New("entry has no run id")
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}

	var inputsJSON any
	if len(entry.InputFingerprints) > 0 {
		raw, err := json.Marshal(entry.InputFingerprints)
		if err != nil {
			return fmt.Errorf("marshal input fingerprints: %w", err)
		}
		inputsJSON = string(raw)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO ledger_entries (
            run_id, stage, attempt, outcome, input_fingerprints,
            output_fingerprint, model_version, error_message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Stage,
		entry.Attempt,
		entry.Outcome,
		inputsJSON,
		nullableString(entry.OutputFingerprint),
		nullableString(entry.ModelVersion),
		nullableString(entry.ErrorMessage),
		entry.StartedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(entry.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// EntriesForRun returns every ledger entry for a run in append order.
func (s *Store) EntriesForRun(ctx context.Context, runID string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LatestSuccess returns the most recent succeeded entry for a stage of a run,
// or nil when the stage has never succeeded.
func (s *Store) LatestSuccess(ctx context.Context, runID string, stage Stage) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
         WHERE run_id = ? AND stage = ? AND outcome = ?
         ORDER BY id DESC LIMIT 1`,
		runID, stage, OutcomeSucceeded)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest success: %w", err)
	}
	return entry, nil
}
