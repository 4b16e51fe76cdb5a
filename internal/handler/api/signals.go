package api

import (
	"context"
	"net/http"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	xhttp "SignalForge/pkg/http"
	xlogger "SignalForge/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Pinger is implemented by backends the health endpoint probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SignalsHandler exposes the async signal API: submit a job, poll its result,
// list history.
type SignalsHandler struct {
	logger  *xlogger.Logger
	queue   repository.Queue
	store   repository.ResultStore
	metrics repository.Metrics
	pingers map[string]Pinger
}

// HandlerOption configures SignalsHandler.
type HandlerOption func(*SignalsHandler)

// WithMetrics attaches an operational metrics recorder.
func WithMetrics(m repository.Metrics) HandlerOption {
	return func(h *SignalsHandler) {
		h.metrics = m
	}
}

// WithPinger registers a backend for the health endpoint.
func WithPinger(name string, p Pinger) HandlerOption {
	return func(h *SignalsHandler) {
		h.pingers[name] = p
	}
}

// NewSignalsHandler creates the handler.
func NewSignalsHandler(lgr *xlogger.Logger, queue repository.Queue, store repository.ResultStore, opts ...HandlerOption) *SignalsHandler {
	h := &SignalsHandler{
		logger:  lgr,
		queue:   queue,
		store:   store,
		pingers: make(map[string]Pinger),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/signals", h.Create)
	g.GET("/signals/history", h.History)
	g.GET("/signals/:id", h.Get)
}

// Create validates the request, records the job durably, enqueues it and
// returns 202 with the job id. The durable row is written before the queue
// push so the job is visible in history even after the queue record expires.
func (h *SignalsHandler) Create(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Holding:     models.HoldingStrategy(req.Holding),
		Risk:        models.RiskProfile(req.Risk),
		ImageBase64: req.ImageBase64,
		Status:      models.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	ctx := c.Request().Context()
	if err := h.store.CreateJob(ctx, job); err != nil {
		h.logger.Error("job create failed",
			xlogger.String("symbol", job.Symbol),
			xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}

	id, err := h.queue.Enqueue(ctx, job)
	if err != nil {
		h.logger.Error("enqueue failed",
			xlogger.String("job_id", job.ID),
			xlogger.Error(err))
		if serr := h.store.UpdateJobStatus(ctx, job.ID, models.StatusFailed, "enqueue failed"); serr != nil {
			h.logger.Error("failure mark failed",
				xlogger.String("job_id", job.ID),
				xlogger.Error(serr))
		}
		return xhttp.InternalServerErrorResponse(c)
	}

	if h.metrics != nil {
		h.metrics.RecordEnqueued(job.Symbol)
	}
	h.logger.Info("job accepted",
		xlogger.String("job_id", id),
		xlogger.String("symbol", job.Symbol),
		xlogger.String("risk", string(job.Risk)))

	return xhttp.DataResponse(c, http.StatusAccepted, models.SignalAccepted{JobID: id})
}

// Get polls a job. The queue record is the hot path; once it has expired the
// durable store still answers.
func (h *SignalsHandler) Get(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	jr, err := h.queue.GetResult(ctx, id)
	if err != nil {
		h.logger.Error("queue result lookup failed",
			xlogger.String("job_id", id),
			xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}

	if jr.Status == models.StatusNotFound {
		jr, err = h.store.GetResult(ctx, id)
		if err != nil {
			h.logger.Error("store result lookup failed",
				xlogger.String("job_id", id),
				xlogger.Error(err))
			return xhttp.InternalServerErrorResponse(c)
		}
		if jr.Status == models.StatusNotFound {
			return xhttp.NotFoundResponse(c, "job not found")
		}
	}

	return xhttp.SuccessResponse(c, jr)
}

// History lists recent completed signals, optionally filtered by symbol and
// user.
func (h *SignalsHandler) History(c echo.Context) error {
	req := &models.HistoryQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	results, err := h.store.RecentResults(c.Request().Context(), req.UserID, req.Symbol, req.Limit)
	if err != nil {
		h.logger.Error("history query failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if results == nil {
		results = []*models.SignalResult{}
	}

	return xhttp.ListResponse(c, results, int64(len(results)))
}

// Health probes the registered backends and reports per-backend status.
func (h *SignalsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.pingers))
	healthy := true
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}
