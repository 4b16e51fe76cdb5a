package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"SignalForge/internal/domain/errs"
	"SignalForge/internal/domain/models"
	"SignalForge/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS signal_jobs (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL DEFAULT 'anonymous',
		symbol       TEXT NOT NULL,
		holding      TEXT NOT NULL,
		risk         TEXT NOT NULL,
		status       TEXT NOT NULL,
		error        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS signal_results (
		job_id         TEXT PRIMARY KEY REFERENCES signal_jobs(id),
		side           TEXT NOT NULL,
		entry          DOUBLE PRECISION NOT NULL,
		stop_loss      DOUBLE PRECISION NOT NULL,
		take_profits   JSONB NOT NULL,
		risk_reward    DOUBLE PRECISION NOT NULL,
		confidence     DOUBLE PRECISION NOT NULL,
		reason         TEXT NOT NULL,
		interpretation JSONB,
		metrics        JSONB,
		vision         JSONB,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signal_jobs_user_created
		ON signal_jobs (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_signal_jobs_symbol_created
		ON signal_jobs (symbol, created_at DESC)`,
}

// PostgresResultStore is the durable store for jobs and results. Result
// writes are idempotent per job id: the first write wins, redeliveries are
// absorbed by ON CONFLICT DO NOTHING.
type PostgresResultStore struct {
	logger *logger.Logger
	pool   *pgxpool.Pool
}

// NewPostgresResultStore creates the store over an existing pool.
func NewPostgresResultStore(lgr *logger.Logger, pool *pgxpool.Pool) *PostgresResultStore {
	return &PostgresResultStore{logger: lgr, pool: pool}
}

// Init creates the schema if it does not exist.
func (s *PostgresResultStore) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return errs.Persistence("init schema", err)
		}
	}
	return nil
}

// Ping verifies the connection.
func (s *PostgresResultStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateJob records a job at enqueue time so it outlives the queue TTL.
// Redelivered creates for the same id are ignored.
func (s *PostgresResultStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO signal_jobs (id, user_id, symbol, holding, risk, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		job.ID, job.UserID, job.Symbol, string(job.Holding), string(job.Risk),
		string(job.Status), job.CreatedAt,
	)
	if err != nil {
		return errs.Persistence("create job", err)
	}
	return nil
}

// UpdateJobStatus updates the job status and error message. Terminal states
// stamp the completion time.
func (s *PostgresResultStore) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, errMsg string) error {
	var completedAt *time.Time
	if status.Terminal() {
		now := time.Now().UTC()
		completedAt = &now
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE signal_jobs
		SET status = $1, error = $2, completed_at = COALESCE($3, completed_at)
		WHERE id = $4`,
		string(status), errMsg, completedAt, jobID,
	)
	if err != nil {
		return errs.Persistence("update job status", err)
	}
	return nil
}

// UpsertResult stores the result row for a job. A second write for the same
// job id is a no-op, which makes redelivered jobs harmless.
func (s *PostgresResultStore) UpsertResult(ctx context.Context, result *models.SignalResult) error {
	takeProfits, err := json.Marshal(result.Setup.TakeProfits)
	if err != nil {
		return errs.Persistence("marshal take profits", err)
	}
	interpretation, err := marshalNullable(result.Interpretation)
	if err != nil {
		return errs.Persistence("marshal interpretation", err)
	}
	metrics, err := marshalNullable(result.Metrics)
	if err != nil {
		return errs.Persistence("marshal metrics", err)
	}
	vision, err := marshalNullable(result.Vision)
	if err != nil {
		return errs.Persistence("marshal vision", err)
	}

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO signal_results (
			job_id, side, entry, stop_loss, take_profits,
			risk_reward, confidence, reason,
			interpretation, metrics, vision, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (job_id) DO NOTHING`,
		result.JobID, string(result.Setup.Side), result.Setup.Entry, result.Setup.StopLoss,
		takeProfits, result.Setup.RiskReward, result.Setup.Confidence, result.Setup.Reason,
		interpretation, metrics, vision, createdAt,
	)
	if err != nil {
		return errs.Persistence("upsert result", err)
	}
	return nil
}

// GetResult returns the durable view of a job. Unknown ids yield
// StatusNotFound rather than an error so the API can fall back here after the
// queue record expires.
func (s *PostgresResultStore) GetResult(ctx context.Context, jobID string) (*models.JobResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT j.status, j.error,
		       r.job_id, r.side, r.entry, r.stop_loss, r.take_profits,
		       r.risk_reward, r.confidence, r.reason,
		       r.interpretation, r.metrics, r.vision, r.created_at
		FROM signal_jobs j
		LEFT JOIN signal_results r ON r.job_id = j.id
		WHERE j.id = $1`,
		jobID,
	)

	var (
		status, errMsg string
		resultID       *string
		result         models.SignalResult
		side, reason   *string
		entry, stop    *float64
		riskReward     *float64
		confidence     *float64
		takeProfits    []byte
		interpretation []byte
		metrics        []byte
		vision         []byte
		createdAt      *time.Time
	)
	err := row.Scan(&status, &errMsg,
		&resultID, &side, &entry, &stop, &takeProfits,
		&riskReward, &confidence, &reason,
		&interpretation, &metrics, &vision, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.JobResult{JobID: jobID, Status: models.StatusNotFound}, nil
		}
		return nil, errs.Persistence("get result", err)
	}

	jr := &models.JobResult{
		JobID:  jobID,
		Status: models.JobStatus(status),
		Error:  errMsg,
	}
	if resultID != nil {
		result.JobID = *resultID
		result.Setup = models.TradeSetup{
			Side:       models.Side(*side),
			Entry:      *entry,
			StopLoss:   *stop,
			RiskReward: *riskReward,
			Confidence: *confidence,
			Reason:     *reason,
		}
		if err := json.Unmarshal(takeProfits, &result.Setup.TakeProfits); err != nil {
			return nil, errs.Persistence("decode take profits", err)
		}
		if err := unmarshalNullable(interpretation, &result.Interpretation); err != nil {
			return nil, errs.Persistence("decode interpretation", err)
		}
		if err := unmarshalNullable(metrics, &result.Metrics); err != nil {
			return nil, errs.Persistence("decode metrics", err)
		}
		if err := unmarshalNullable(vision, &result.Vision); err != nil {
			return nil, errs.Persistence("decode vision", err)
		}
		if createdAt != nil {
			result.CreatedAt = *createdAt
		}
		jr.Result = &result
	}

	return jr, nil
}

// RecentResults lists completed results, newest first, optionally filtered by
// user and symbol.
func (s *PostgresResultStore) RecentResults(ctx context.Context, userID, symbol string, limit int) ([]*models.SignalResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.job_id, r.side, r.entry, r.stop_loss, r.take_profits,
		       r.risk_reward, r.confidence, r.reason,
		       r.interpretation, r.metrics, r.vision, r.created_at
		FROM signal_results r
		JOIN signal_jobs j ON j.id = r.job_id
		WHERE ($1 = '' OR j.user_id = $1)
		  AND ($2 = '' OR j.symbol = $2)
		ORDER BY r.created_at DESC
		LIMIT $3`,
		userID, symbol, limit,
	)
	if err != nil {
		return nil, errs.Persistence("query recent results", err)
	}
	defer rows.Close()

	var results []*models.SignalResult
	for rows.Next() {
		var (
			r              models.SignalResult
			side           string
			takeProfits    []byte
			interpretation []byte
			metrics        []byte
			vision         []byte
		)
		err := rows.Scan(&r.JobID, &side, &r.Setup.Entry, &r.Setup.StopLoss, &takeProfits,
			&r.Setup.RiskReward, &r.Setup.Confidence, &r.Setup.Reason,
			&interpretation, &metrics, &vision, &r.CreatedAt,
		)
		if err != nil {
			return nil, errs.Persistence("scan result", err)
		}
		r.Setup.Side = models.Side(side)
		if err := json.Unmarshal(takeProfits, &r.Setup.TakeProfits); err != nil {
			return nil, errs.Persistence("decode take profits", err)
		}
		if err := unmarshalNullable(interpretation, &r.Interpretation); err != nil {
			return nil, errs.Persistence("decode interpretation", err)
		}
		if err := unmarshalNullable(metrics, &r.Metrics); err != nil {
			return nil, errs.Persistence("decode metrics", err)
		}
		if err := unmarshalNullable(vision, &r.Vision); err != nil {
			return nil, errs.Persistence("decode vision", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("iterate results", err)
	}

	return results, nil
}

func marshalNullable(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case *models.MarketInterpretation:
		if val == nil {
			return nil, nil
		}
	case *models.MarketMetrics:
		if val == nil {
			return nil, nil
		}
	case *models.VisionAnalysis:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func unmarshalNullable(data []byte, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
