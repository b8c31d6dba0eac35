package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id              string
		sourceRef       string
		statusStr       string
		descriptor      sql.NullString
		platformID      sql.NullString
		errorMessage    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceRef,
		&statusStr,
		&descriptor,
		&platformID,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:              id,
		SourceRef:       sourceRef,
		Status:          RunStatus(statusStr),
		DescriptorJSON:  descriptor.String,
		PlatformID:      platformID.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			run.LastHeartbeat = &heartbeat
		}
	}
	return run, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id           int64
		runID        string
		stageStr     string
		attempt      sql.NullInt64
		outcomeStr   string
		inputsRaw    sql.NullString
		output       sql.NullString
		modelVersion sql.NullString
		errorMessage sql.NullString
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&runID,
		&stageStr,
		&attempt,
		&outcomeStr,
		&inputsRaw,
		&output,
		&modelVersion,
		&errorMessage,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:                id,
		RunID:             runID,
		Stage:             Stage(stageStr),
		Attempt:           int(attempt.Int64),
		Outcome:           Outcome(outcomeStr),
		OutputFingerprint: output.String,
		ModelVersion:      modelVersion.String,
		ErrorMessage:      errorMessage.String,
	}

	if inputsRaw.Valid && inputsRaw.String != "" {
		if err := json.Unmarshal([]byte(inputsRaw.String), &entry.InputFingerprints); err != nil {
			return nil, fmt.Errorf("unmarshal input fingerprints: %w", err)
		}
	}
	if started, err := parseTimeString(startedRaw.String); err == nil {
		entry.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			entry.FinishedAt = &finished
		}
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
