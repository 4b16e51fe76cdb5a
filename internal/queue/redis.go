package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a durable FIFO work queue over a Redis list plus a hash per
// job. Metadata is written before the id is pushed so a crash between the two
// never loses a job; a dangling list entry with expired metadata is skipped
// by Dequeue. Delivery is at-least-once: consumers must write idempotently.
type RedisQueue struct {
	logger         *logger.Logger
	client         *redis.Client
	keyPrefix      string
	queueName      string
	jobTTL         time.Duration
	dequeueTimeout time.Duration
}

// Option configures RedisQueue.
type Option func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(q *RedisQueue) {
		q.keyPrefix = prefix
	}
}

// WithQueueName sets the queue list name.
func WithQueueName(name string) Option {
	return func(q *RedisQueue) {
		q.queueName = name
	}
}

// WithJobTTL sets the metadata expiry.
func WithJobTTL(ttl time.Duration) Option {
	return func(q *RedisQueue) {
		q.jobTTL = ttl
	}
}

// WithDequeueTimeout sets the blocking pop timeout.
func WithDequeueTimeout(d time.Duration) Option {
	return func(q *RedisQueue) {
		q.dequeueTimeout = d
	}
}

// NewRedisQueue creates a Redis-backed job queue.
func NewRedisQueue(lgr *logger.Logger, client *redis.Client, opts ...Option) *RedisQueue {
	q := &RedisQueue{
		logger:         lgr,
		client:         client,
		keyPrefix:      "signalforge",
		queueName:      "signal-processing",
		jobTTL:         24 * time.Hour,
		dequeueTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Ping verifies the connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue stores the job metadata under its own key with the configured TTL,
// then appends the id to the queue list. Returns the job id.
func (q *RedisQueue) Enqueue(ctx context.Context, job *models.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	fields := map[string]interface{}{
		"id":         job.ID,
		"user_id":    job.UserID,
		"symbol":     job.Symbol,
		"holding":    string(job.Holding),
		"risk":       string(job.Risk),
		"status":     string(job.Status),
		"created_at": strconv.FormatInt(job.CreatedAt.UnixMilli(), 10),
	}
	if job.ImageBase64 != "" {
		fields["image_base64"] = job.ImageBase64
	}

	jobKey := q.jobKey(job.ID)
	if err := q.client.HSet(ctx, jobKey, fields).Err(); err != nil {
		return "", fmt.Errorf("hset job: %w", err)
	}
	if err := q.client.Expire(ctx, jobKey, q.jobTTL).Err(); err != nil {
		return "", fmt.Errorf("expire job: %w", err)
	}
	if err := q.client.LPush(ctx, q.queueKey(), job.ID).Err(); err != nil {
		return "", fmt.Errorf("lpush job id: %w", err)
	}

	q.logger.Debug("job enqueued",
		logger.String("job_id", job.ID),
		logger.String("symbol", job.Symbol))
	return job.ID, nil
}

// Dequeue blocks up to the configured timeout for the next job id, then loads
// its metadata. Returns (nil, nil) on timeout or when the metadata is gone so
// the caller can loop and check for shutdown.
func (q *RedisQueue) Dequeue(ctx context.Context) (*models.Job, error) {
	result, err := q.client.BRPop(ctx, q.dequeueTimeout, q.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("brpop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}

	jobID := result[1]
	job, err := q.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		q.logger.Warn("job metadata not found, skipping",
			logger.String("job_id", jobID))
		return nil, nil
	}

	return job, nil
}

// UpdateStatus atomically updates the status field of the job record.
func (q *RedisQueue) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	err := q.client.HSet(ctx, q.jobKey(jobID), map[string]interface{}{
		"status":     string(status),
		"updated_at": strconv.FormatInt(time.Now().UTC().UnixMilli(), 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// SetResult stores the serialized result and marks the job completed.
func (q *RedisQueue) SetResult(ctx context.Context, jobID string, result *models.SignalResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	err = q.client.HSet(ctx, q.jobKey(jobID), map[string]interface{}{
		"result":       data,
		"status":       string(models.StatusCompleted),
		"completed_at": strconv.FormatInt(time.Now().UTC().UnixMilli(), 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("set result: %w", err)
	}
	return nil
}

// SetError stores the error message and marks the job failed.
func (q *RedisQueue) SetError(ctx context.Context, jobID string, message string) error {
	err := q.client.HSet(ctx, q.jobKey(jobID), map[string]interface{}{
		"error":        message,
		"status":       string(models.StatusFailed),
		"completed_at": strconv.FormatInt(time.Now().UTC().UnixMilli(), 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("set error: %w", err)
	}
	return nil
}

// GetResult returns the current status plus result or error for a job id.
// Unknown ids yield StatusNotFound.
func (q *RedisQueue) GetResult(ctx context.Context, jobID string) (*models.JobResult, error) {
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall job: %w", err)
	}
	if len(data) == 0 {
		return &models.JobResult{JobID: jobID, Status: models.StatusNotFound}, nil
	}

	jr := &models.JobResult{
		JobID:  jobID,
		Status: models.JobStatus(data["status"]),
		Error:  data["error"],
	}
	if raw, ok := data["result"]; ok && raw != "" {
		var result models.SignalResult
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		jr.Result = &result
	}

	return jr, nil
}

// Delete removes a job record.
func (q *RedisQueue) Delete(ctx context.Context, jobID string) error {
	return q.client.Del(ctx, q.jobKey(jobID)).Err()
}

func (q *RedisQueue) getJob(ctx context.Context, jobID string) (*models.Job, error) {
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall job: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	job := &models.Job{
		ID:          data["id"],
		UserID:      data["user_id"],
		Symbol:      data["symbol"],
		Holding:     models.HoldingStrategy(data["holding"]),
		Risk:        models.RiskProfile(data["risk"]),
		ImageBase64: data["image_base64"],
		Status:      models.JobStatus(data["status"]),
		Error:       data["error"],
	}
	if ms, err := strconv.ParseInt(data["created_at"], 10, 64); err == nil {
		job.CreatedAt = time.UnixMilli(ms).UTC()
	}
	return job, nil
}

func (q *RedisQueue) jobKey(jobID string) string {
	return fmt.Sprintf("%s:job:%s", q.keyPrefix, jobID)
}

func (q *RedisQueue) queueKey() string {
	return fmt.Sprintf("%s:queue:%s", q.keyPrefix, q.queueName)
}
