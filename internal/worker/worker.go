package worker

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	"SignalForge/pkg/logger"
)

// Processor runs the analysis pipeline for one dequeued job.
type Processor interface {
	Process(ctx context.Context, job *models.Job) (*models.SignalResult, error)
}

// Worker is the queue consumer. It dequeues jobs one at a time, runs the
// pipeline and records the outcome in both the queue record and the durable
// store. A panic while handling a job fails that job only; the loop survives.
type Worker struct {
	logger       *logger.Logger
	queue        repository.Queue
	store        repository.ResultStore
	processor    Processor
	errorBackoff time.Duration
}

// Option configures Worker.
type Option func(*Worker)

// WithErrorBackoff sets the sleep after a dequeue error.
func WithErrorBackoff(d time.Duration) Option {
	return func(w *Worker) {
		w.errorBackoff = d
	}
}

// New creates a worker.
func New(lgr *logger.Logger, queue repository.Queue, store repository.ResultStore, processor Processor, opts ...Option) *Worker {
	w := &Worker{
		logger:       lgr,
		queue:        queue,
		store:        store,
		processor:    processor,
		errorBackoff: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run consumes jobs until ctx is cancelled. An empty dequeue is a normal
// timeout and loops immediately; a dequeue error backs off before retrying.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return nil
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopped")
				return nil
			}
			w.logger.Error("dequeue failed", logger.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(w.errorBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *models.Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic while processing job",
				logger.String("job_id", job.ID),
				logger.Any("panic", r))
			w.fail(ctx, job.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	w.logger.Info("processing job",
		logger.String("job_id", job.ID),
		logger.String("symbol", job.Symbol),
		logger.String("risk", string(job.Risk)))

	if err := w.queue.UpdateStatus(ctx, job.ID, models.StatusProcessing); err != nil {
		w.logger.Warn("queue status update failed",
			logger.String("job_id", job.ID),
			logger.Error(err))
	}
	if err := w.store.UpdateJobStatus(ctx, job.ID, models.StatusProcessing, ""); err != nil {
		w.logger.Warn("store status update failed",
			logger.String("job_id", job.ID),
			logger.Error(err))
	}

	result, err := w.processor.Process(ctx, job)
	if err != nil {
		w.logger.Error("job failed",
			logger.String("job_id", job.ID),
			logger.String("symbol", job.Symbol),
			logger.Error(err))
		w.fail(ctx, job.ID, err.Error())
		return
	}

	if err := w.queue.SetResult(ctx, job.ID, result); err != nil {
		w.logger.Error("queue result write failed",
			logger.String("job_id", job.ID),
			logger.Error(err))
	}
	if err := w.store.UpdateJobStatus(ctx, job.ID, models.StatusCompleted, ""); err != nil {
		w.logger.Error("store completion update failed",
			logger.String("job_id", job.ID),
			logger.Error(err))
	}
}

// fail marks the job failed in both stores. Uses a detached context so a
// cancelled job still records its failure.
func (w *Worker) fail(ctx context.Context, jobID, message string) {
	ctx = context.WithoutCancel(ctx)
	if err := w.queue.SetError(ctx, jobID, message); err != nil {
		w.logger.Error("queue error write failed",
			logger.String("job_id", jobID),
			logger.Error(err))
	}
	if err := w.store.UpdateJobStatus(ctx, jobID, models.StatusFailed, message); err != nil {
		w.logger.Error("store failure update failed",
			logger.String("job_id", jobID),
			logger.Error(err))
	}
}
