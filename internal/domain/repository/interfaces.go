package repository

import (
	"context"

	"SignalForge/internal/domain/models"
)

// Queue is the durable work queue contract. Implementations must provide
// at-least-once delivery; consumers tolerate redelivery through idempotent
// writes keyed by job id.
type Queue interface {
	// Enqueue stores job metadata with a bounded TTL and appends the job id
	// to the queue list. Returns the job id.
	Enqueue(ctx context.Context, job *models.Job) (string, error)

	// Dequeue blocks up to the configured timeout for the next job.
	// Returns (nil, nil) when the queue stayed empty or the popped id had no
	// metadata; the caller loops.
	Dequeue(ctx context.Context) (*models.Job, error)

	// UpdateStatus atomically updates the status field of the job record.
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error

	// SetResult stores the result, marks the job completed and stamps the
	// completion time.
	SetResult(ctx context.Context, jobID string, result *models.SignalResult) error

	// SetError stores the error message, marks the job failed and stamps the
	// completion time.
	SetError(ctx context.Context, jobID string, message string) error

	// GetResult returns the current status plus result or error. Unknown or
	// expired ids yield StatusNotFound, not an error.
	GetResult(ctx context.Context, jobID string) (*models.JobResult, error)
}

// CandleSource fetches OHLCV series for a symbol.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	MarketData(ctx context.Context, symbol string) (*models.MarketData, error)
	ClearCache(ctx context.Context, symbol string) error
}

// Interpreter obtains a probabilistic market interpretation. The returned
// value has already passed schema validation.
type Interpreter interface {
	Interpret(ctx context.Context, symbol string, metrics *models.MarketMetrics, candles []models.Candle, vision *models.VisionAnalysis) (*models.MarketInterpretation, error)
}

// VisionAnalyzer extracts levels and patterns from a chart image.
type VisionAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageBase64 string) (*models.VisionAnalysis, error)
}

// ResultStore is the durable storage for jobs and their results.
type ResultStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, errMsg string) error
	UpsertResult(ctx context.Context, result *models.SignalResult) error
	GetResult(ctx context.Context, jobID string) (*models.JobResult, error)
	RecentResults(ctx context.Context, userID, symbol string, limit int) ([]*models.SignalResult, error)
}

// Archive is an append-only analytics sink for completed signals.
// Failures are logged, never fatal to the pipeline.
type Archive interface {
	ArchiveResult(ctx context.Context, result *models.SignalResult, symbol string) error
}

// Publisher emits completed-signal events for downstream consumers.
type Publisher interface {
	PublishCompleted(ctx context.Context, result *models.SignalResult) error
	Close() error
}

// Metrics records operational metrics.
type Metrics interface {
	RecordEnqueued(symbol string)
	RecordProcessed(status string, side string)
	RecordStageLatency(stage string, seconds float64)
	RecordQueueWait(seconds float64)
	RecordUpstreamError(source string)
}
