package ledger

import (
	"strings"
	"time"
)

// Stage identifies one step of the transformation pipeline.
type Stage string

const (
	StageAcquire  Stage = "acquire"
	StageAnalyze  Stage = "analyze"
	StageEdit     Stage = "edit"
	StageAdapt    Stage = "adapt"
	StageOptimize Stage = "optimize"
	StagePublish  Stage = "publish"
)

var stageOrder = []Stage{
	StageAcquire,
	StageAnalyze,
	StageEdit,
	StageAdapt,
	StageOptimize,
	StagePublish,
}

// StageOrder returns pipeline stages in execution order.
func StageOrder() []Stage {
	cp := make([]Stage, len(stageOrder))
	copy(cp, stageOrder)
	return cp
}

// RunStatus represents the lifecycle of a pipeline run. Each stage has a
// processing status (stage in flight) and a done status (stage output
// recorded); published, failed, and abandoned are terminal.
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusAcquiring  RunStatus = "acquiring"
	StatusAcquired   RunStatus = "acquired"
	StatusAnalyzing  RunStatus = "analyzing"
	StatusAnalyzed   RunStatus = "analyzed"
	StatusEditing    RunStatus = "editing"
	StatusEdited     RunStatus = "edited"
	StatusAdapting   RunStatus = "adapting"
	StatusAdapted    RunStatus = "adapted"
	StatusOptimizing RunStatus = "optimizing"
	StatusOptimized  RunStatus = "optimized"
	StatusPublishing RunStatus = "publishing"
	StatusPublished  RunStatus = "published"
	StatusFailed     RunStatus = "failed"
	StatusAbandoned  RunStatus = "abandoned"
)

var allStatuses = []RunStatus{
	StatusPending,
	StatusAcquiring,
	StatusAcquired,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusEditing,
	StatusEdited,
	StatusAdapting,
	StatusAdapted,
	StatusOptimizing,
	StatusOptimized,
	StatusPublishing,
	StatusPublished,
	StatusFailed,
	StatusAbandoned,
}

var statusSet = func() map[RunStatus]struct{} {
	set := make(map[RunStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingByStage = map[Stage]RunStatus{
	StageAcquire:  StatusAcquiring,
	StageAnalyze:  StatusAnalyzing,
	StageEdit:     StatusEditing,
	StageAdapt:    StatusAdapting,
	StageOptimize: StatusOptimizing,
	StagePublish:  StatusPublishing,
}

var doneByStage = map[Stage]RunStatus{
	StageAcquire:  StatusAcquired,
	StageAnalyze:  StatusAnalyzed,
	StageEdit:     StatusEdited,
	StageAdapt:    StatusAdapted,
	StageOptimize: StatusOptimized,
	StagePublish:  StatusPublished,
}

// claimableNextStage maps resumable statuses to the stage a worker runs next.
var claimableNextStage = map[RunStatus]Stage{
	StatusPending:   StageAcquire,
	StatusAcquired:  StageAnalyze,
	StatusAnalyzed:  StageEdit,
	StatusEdited:    StageAdapt,
	StatusAdapted:   StageOptimize,
	StatusOptimized: StagePublish,
}

// rollbackByProcessing maps an in-flight status back to the last durable one,
// used when requeuing runs interrupted by a crash or shutdown.
var rollbackByProcessing = map[RunStatus]RunStatus{
	StatusAcquiring:  StatusPending,
	StatusAnalyzing:  StatusAcquired,
	StatusEditing:    StatusAnalyzed,
	StatusAdapting:   StatusEdited,
	StatusOptimizing: StatusAdapted,
	StatusPublishing: StatusOptimized,
}

// ProcessingStatus returns the in-flight status for a stage.
func ProcessingStatus(stage Stage) RunStatus { return processingByStage[stage] }

// DoneStatus returns the durable status recorded when a stage completes.
func DoneStatus(stage Stage) RunStatus { return doneByStage[stage] }

// NextStage returns the stage a run at the given status should execute next.
// The second result is false for in-flight and terminal statuses.
func NextStage(status RunStatus) (Stage, bool) {
	stage, ok := claimableNextStage[status]
	return stage, ok
}

// Rollback returns the durable status a run should return to when its
// in-flight stage is interrupted. The second result is false for statuses
// that are not in flight.
func Rollback(status RunStatus) (RunStatus, bool) {
	to, ok := rollbackByProcessing[status]
	return to, ok
}

// ParseStatus converts a string into a known RunStatus.
func ParseStatus(value string) (RunStatus, bool) {
	normalized := RunStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []RunStatus {
	cp := make([]RunStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// IsProcessing reports whether the status reflects an in-flight stage.
func (s RunStatus) IsProcessing() bool {
	_, ok := rollbackByProcessing[s]
	return ok
}

// IsTerminal reports whether the run will never progress again.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusPublished, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// Run is one pipeline execution persisted in SQLite.
type Run struct {
	ID              string
	SourceRef       string
	Status          RunStatus
	DescriptorJSON  string
	PlatformID      string
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// SetProgress updates the progress fields together.
func (r *Run) SetProgress(stage, message string, percent float64) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ProgressPercent = percent
}

// SetFailed marks the run failed and clears its heartbeat.
func (r *Run) SetFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.ProgressMessage = message
	r.LastHeartbeat = nil
}

// Outcome classifies a ledger entry.
type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one append-only provenance record. A stage writes a started entry
// before doing work and a succeeded or failed entry when it finishes; entries
// are never updated or deleted.
type Entry struct {
	ID                int64
	RunID             string
	Stage             Stage
	Attempt           int
	Outcome           Outcome
	InputFingerprints []string
	OutputFingerprint string
	ModelVersion      string
	ErrorMessage      string
	StartedAt         time.Time
	FinishedAt        *time.Time
}
