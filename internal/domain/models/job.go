package models

import "time"

// JobStatus is the lifecycle state of a signal job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	// StatusNotFound is returned by result lookups for unknown or expired ids.
	// It is a poll outcome, not an error.
	StatusNotFound JobStatus = "not_found"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one queued signal request. Created by the producer, mutated only by
// the worker that dequeued it, immutable once terminal.
type Job struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Symbol      string          `json:"symbol"`
	Holding     HoldingStrategy `json:"holding"`
	Risk        RiskProfile     `json:"risk"`
	ImageBase64 string          `json:"image_base64,omitempty"`
	Status      JobStatus       `json:"status"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// SignalResult is the full outcome of one processed job, persisted for audit.
type SignalResult struct {
	JobID          string                `json:"job_id"`
	Setup          TradeSetup            `json:"setup"`
	Interpretation *MarketInterpretation `json:"interpretation,omitempty"`
	Metrics        *MarketMetrics        `json:"metrics,omitempty"`
	Vision         *VisionAnalysis       `json:"vision,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// JobResult is the poll view of a job: its status plus the result or error.
type JobResult struct {
	JobID  string        `json:"job_id"`
	Status JobStatus     `json:"status"`
	Result *SignalResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}
