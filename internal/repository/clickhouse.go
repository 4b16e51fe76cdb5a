package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
)

const archiveTable = "signal_archive"

var archiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + archiveTable + ` (
		job_id       String,
		symbol       String,
		side         String,
		entry        Float64,
		stop_loss    Float64,
		risk_reward  Float64,
		confidence   Float64,
		reason       String,
		bias         String,
		structure    String,
		atr_percent  Float64,
		created_at   DateTime
	) ENGINE = MergeTree()
	ORDER BY (symbol, created_at)`,
}

// ClickHouseArchive appends completed signals to an analytics table. The
// pipeline never depends on it: failures are surfaced to the caller for
// logging and otherwise ignored.
type ClickHouseArchive struct {
	db *sql.DB
}

// NewClickHouseArchive creates the archive over an existing connection pool.
func NewClickHouseArchive(db *sql.DB) *ClickHouseArchive {
	return &ClickHouseArchive{db: db}
}

// Init ensures the archive table exists.
func (a *ClickHouseArchive) Init(ctx context.Context) error {
	for _, stmt := range archiveSchema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init archive schema: %w", err)
		}
	}
	return nil
}

// ArchiveResult appends one completed signal row.
func (a *ClickHouseArchive) ArchiveResult(ctx context.Context, result *models.SignalResult, symbol string) error {
	var bias, structure string
	if result.Interpretation != nil {
		bias = result.Interpretation.Bias
		structure = result.Interpretation.Structure
	}
	var atrPercent float64
	if result.Metrics != nil {
		atrPercent = result.Metrics.ATRPercent
	}
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	q := fmt.Sprintf(`INSERT INTO %s
		(job_id, symbol, side, entry, stop_loss, risk_reward, confidence, reason, bias, structure, atr_percent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, archiveTable)
	_, err := a.db.ExecContext(ctx, q,
		result.JobID,
		symbol,
		string(result.Setup.Side),
		result.Setup.Entry,
		result.Setup.StopLoss,
		result.Setup.RiskReward,
		result.Setup.Confidence,
		result.Setup.Reason,
		bias,
		structure,
		atrPercent,
		createdAt,
	)
	return err
}

// Health checks connectivity.
func (a *ClickHouseArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}
