package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/decision"
	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	"SignalForge/internal/market"
	"SignalForge/pkg/logger"
)

// SignalProcessor runs the analysis pipeline for one job: fetch candles,
// compute metrics, gate on tradeability, optionally analyze a chart image,
// obtain an interpretation and reduce it to a trade setup, then persist.
//
// Vision, archive and publisher stages are best-effort: their failures are
// logged and the pipeline continues. Candle fetch, interpretation and the
// durable result write are fatal for the job.
type SignalProcessor struct {
	logger      *logger.Logger
	candles     repository.CandleSource
	interpreter repository.Interpreter
	store       repository.ResultStore
	vision      repository.VisionAnalyzer
	archive     repository.Archive
	publisher   repository.Publisher
	metrics     repository.Metrics
}

// ProcessorOption configures SignalProcessor.
type ProcessorOption func(*SignalProcessor)

// WithVision attaches a chart image analyzer.
func WithVision(v repository.VisionAnalyzer) ProcessorOption {
	return func(p *SignalProcessor) {
		p.vision = v
	}
}

// WithArchive attaches an analytics archive.
func WithArchive(a repository.Archive) ProcessorOption {
	return func(p *SignalProcessor) {
		p.archive = a
	}
}

// WithPublisher attaches a completed-signal publisher.
func WithPublisher(pub repository.Publisher) ProcessorOption {
	return func(p *SignalProcessor) {
		p.publisher = pub
	}
}

// WithMetrics attaches an operational metrics recorder.
func WithMetrics(m repository.Metrics) ProcessorOption {
	return func(p *SignalProcessor) {
		p.metrics = m
	}
}

// NewSignalProcessor creates the pipeline orchestrator.
func NewSignalProcessor(
	lgr *logger.Logger,
	candles repository.CandleSource,
	interpreter repository.Interpreter,
	store repository.ResultStore,
	opts ...ProcessorOption,
) *SignalProcessor {
	p := &SignalProcessor{
		logger:      lgr,
		candles:     candles,
		interpreter: interpreter,
		store:       store,
		metrics:     noopMetrics{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Process runs the full pipeline for a job and returns the persisted result.
// Idempotent per job id: a redelivered job recomputes but the durable write
// keeps the first result.
func (p *SignalProcessor) Process(ctx context.Context, job *models.Job) (*models.SignalResult, error) {
	if !job.CreatedAt.IsZero() {
		p.metrics.RecordQueueWait(time.Since(job.CreatedAt).Seconds())
	}

	defer func() {
		// Drop the candle cache so a follow-up request sees fresh data.
		if err := p.candles.ClearCache(context.WithoutCancel(ctx), job.Symbol); err != nil {
			p.logger.Warn("cache clear failed",
				logger.String("symbol", job.Symbol),
				logger.Error(err))
		}
	}()

	fetchStart := time.Now()
	md, err := p.candles.MarketData(ctx, job.Symbol)
	if err != nil {
		p.metrics.RecordUpstreamError("candles")
		return nil, fmt.Errorf("market data for %s: %w", job.Symbol, err)
	}
	p.metrics.RecordStageLatency("fetch", time.Since(fetchStart).Seconds())

	metrics, err := market.Calculate(md.HTF)
	if err != nil {
		return nil, fmt.Errorf("calculate metrics for %s: %w", job.Symbol, err)
	}

	// Gate: an untradeable market is a completed no_trade result, not a
	// failure. No interpretation call is spent on it.
	if !market.Tradeable(metrics) {
		p.logger.Info("market not tradeable",
			logger.String("job_id", job.ID),
			logger.String("symbol", job.Symbol),
			logger.Float64("atr_percent", metrics.ATRPercent),
			logger.Float64("range_24h", metrics.Range24h))
		setup := models.NoTrade(0, "Market not tradeable: low volatility or insufficient range")
		return p.finish(ctx, job, setup, nil, metrics, nil)
	}

	var vision *models.VisionAnalysis
	if job.ImageBase64 != "" && p.vision != nil {
		visionStart := time.Now()
		vision, err = p.vision.AnalyzeImage(ctx, job.ImageBase64)
		if err != nil {
			p.metrics.RecordUpstreamError("vision")
			p.logger.Warn("chart analysis failed, continuing without it",
				logger.String("job_id", job.ID),
				logger.Error(err))
			vision = nil
		}
		p.metrics.RecordStageLatency("vision", time.Since(visionStart).Seconds())
	}

	interpretStart := time.Now()
	interp, err := p.interpreter.Interpret(ctx, job.Symbol, metrics, md.HTF, vision)
	if err != nil {
		p.metrics.RecordUpstreamError("interpreter")
		return nil, fmt.Errorf("interpret %s: %w", job.Symbol, err)
	}
	p.metrics.RecordStageLatency("interpret", time.Since(interpretStart).Seconds())

	setup := decision.BuildTradeSetup(interp, metrics, job.Risk)
	if !decision.Validate(setup) {
		p.logger.Error("setup failed validation",
			logger.String("job_id", job.ID),
			logger.Any("setup", setup))
		setup = models.NoTrade(setup.Confidence, "Setup validation failed")
	}

	return p.finish(ctx, job, setup, interp, metrics, vision)
}

func (p *SignalProcessor) finish(
	ctx context.Context,
	job *models.Job,
	setup models.TradeSetup,
	interp *models.MarketInterpretation,
	metrics *models.MarketMetrics,
	vision *models.VisionAnalysis,
) (*models.SignalResult, error) {
	result := &models.SignalResult{
		JobID:          job.ID,
		Setup:          setup,
		Interpretation: interp,
		Metrics:        metrics,
		Vision:         vision,
		CreatedAt:      time.Now().UTC(),
	}

	persistStart := time.Now()
	if err := p.store.UpsertResult(ctx, result); err != nil {
		return nil, fmt.Errorf("persist result for job %s: %w", job.ID, err)
	}
	p.metrics.RecordStageLatency("persist", time.Since(persistStart).Seconds())

	if p.archive != nil {
		if err := p.archive.ArchiveResult(ctx, result, job.Symbol); err != nil {
			p.logger.Warn("archive write failed",
				logger.String("job_id", job.ID),
				logger.Error(err))
		}
	}
	if p.publisher != nil {
		if err := p.publisher.PublishCompleted(ctx, result); err != nil {
			p.logger.Warn("publish failed",
				logger.String("job_id", job.ID),
				logger.Error(err))
		}
	}

	p.metrics.RecordProcessed(string(models.StatusCompleted), string(setup.Side))
	p.logger.Info("job processed",
		logger.String("job_id", job.ID),
		logger.String("symbol", job.Symbol),
		logger.String("side", string(setup.Side)),
		logger.Float64("confidence", setup.Confidence))

	return result, nil
}

type noopMetrics struct{}

func (noopMetrics) RecordEnqueued(string)              {}
func (noopMetrics) RecordProcessed(string, string)     {}
func (noopMetrics) RecordStageLatency(string, float64) {}
func (noopMetrics) RecordQueueWait(float64)            {}
func (noopMetrics) RecordUpstreamError(string)         {}
