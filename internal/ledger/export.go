package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"clipforge/internal/services"
)

// AuditExport is the JSON document produced for external auditors: the run
// row plus its full entry history, untouched.
type AuditExport struct {
	ExportedAt time.Time    `json:"exported_at"`
	Run        auditRun     `json:"run"`
	Entries    []auditEntry `json:"entries"`
}

type auditRun struct {
	ID              string     `json:"id"`
	SourceRef       string     `json:"source_ref"`
	Status          RunStatus  `json:"status"`
	PlatformID      string     `json:"platform_id,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ProgressStage   string     `json:"progress_stage,omitempty"`
	ProgressPercent float64    `json:"progress_percent"`
	LastHeartbeat   *time.Time `json:"last_heartbeat,omitempty"`
}

type auditEntry struct {
	ID                int64      `json:"id"`
	Stage             Stage      `json:"stage"`
	Attempt           int        `json:"attempt"`
	Outcome           Outcome    `json:"outcome"`
	InputFingerprints []string   `json:"input_fingerprints,omitempty"`
	OutputFingerprint string     `json:"output_fingerprint,omitempty"`
	ModelVersion      string     `json:"model_version,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// Export writes a run's audit document as indented JSON.
func (s *Store) Export(ctx context.Context, runID string, w io.Writer) error {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return services.Wrap(services.ErrNotFound, "ledger", "export", "run not found", nil)
	}
	entries, err := s.EntriesForRun(ctx, runID)
	if err != nil {
		return err
	}

	doc := AuditExport{
		ExportedAt: time.Now().UTC(),
		Run: auditRun{
			ID:              run.ID,
			SourceRef:       run.SourceRef,
			Status:          run.Status,
			PlatformID:      run.PlatformID,
			ErrorMessage:    run.ErrorMessage,
			CreatedAt:       run.CreatedAt,
			UpdatedAt:       run.UpdatedAt,
			ProgressStage:   run.ProgressStage,
			ProgressPercent: run.ProgressPercent,
			LastHeartbeat:   run.LastHeartbeat,
		},
		Entries: make([]auditEntry, 0, len(entries)),
	}
	for _, entry := range entries {
		doc.Entries = append(doc.Entries, auditEntry{
			ID:                entry.ID,
			Stage:             entry.Stage,
			Attempt:           entry.Attempt,
			Outcome:           entry.Outcome,
			InputFingerprints: entry.InputFingerprints,
			OutputFingerprint: entry.OutputFingerprint,
			ModelVersion:      entry.ModelVersion,
			ErrorMessage:      entry.ErrorMessage,
			StartedAt:         entry.StartedAt,
			FinishedAt:        entry.FinishedAt,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode audit export: %w", err)
	}
	return nil
}
