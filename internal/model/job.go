package model

import "time"

// Stop reasons recorded when a bulk enrichment run finalizes.
const (
	StopReasonCompleted = "Completed"
	StopReasonUser      = "Stopped by user"
)

// BulkJobStatus tracks a bulk enrichment run. Created fresh at job
// start and frozen (Running=false, CompletedAt and StopReason set) on
// every exit path.
type BulkJobStatus struct {
	Running          bool       `json:"running"`
	Processed        int        `json:"processed"`
	Total            int        `json:"total"`
	Skipped          int        `json:"skipped"`
	Errors           int        `json:"errors"`
	BytesTransferred int64      `json:"bytes_transferred"`
	BytesHuman       string     `json:"bytes_human,omitempty"`
	ETASeconds       *int64     `json:"eta_seconds,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	StopReason       string     `json:"stop_reason,omitempty"`
}

// StartResult reports whether StartBulk actually launched a run.
type StartResult struct {
	Started bool   `json:"started"`
	Message string `json:"message,omitempty"`
}
