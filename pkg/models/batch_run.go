package models

import "time"

// Batch run kinds
const (
	BatchKindEmbedding = "embedding"
	BatchKindMatching  = "matching"
)

// Batch run statuses
const (
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
)

// BatchRun records one execution of a batch job. Rows are created when the
// job starts and finalized exactly once when it ends, so a run_id handed to a
// caller can always be resolved.
type BatchRun struct {
	ID           string     `json:"id" db:"id"`
	Kind         string     `json:"kind" db:"kind"`
	Status       string     `json:"status" db:"status"`
	Processed    int        `json:"processed" db:"processed"`
	SuccessCount int        `json:"success_count" db:"success_count"`
	ErrorCount   int        `json:"error_count" db:"error_count"`
	ErrorDetails []byte     `json:"-" db:"error_details"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}
