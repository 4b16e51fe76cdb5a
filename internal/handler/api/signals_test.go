package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SignalForge/internal/domain/models"
	"SignalForge/pkg/logger"

	"github.com/labstack/echo/v4"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return lgr
}

type memQueue struct {
	jobs    []*models.Job
	records map[string]*models.JobResult
}

func newMemQueue() *memQueue {
	return &memQueue{records: make(map[string]*models.JobResult)}
}

func (q *memQueue) Enqueue(_ context.Context, job *models.Job) (string, error) {
	q.jobs = append(q.jobs, job)
	q.records[job.ID] = &models.JobResult{JobID: job.ID, Status: models.StatusPending}
	return job.ID, nil
}

func (q *memQueue) Dequeue(context.Context) (*models.Job, error) { return nil, nil }

func (q *memQueue) UpdateStatus(_ context.Context, jobID string, status models.JobStatus) error {
	if r, ok := q.records[jobID]; ok {
		r.Status = status
	}
	return nil
}

func (q *memQueue) SetResult(_ context.Context, jobID string, result *models.SignalResult) error {
	q.records[jobID] = &models.JobResult{JobID: jobID, Status: models.StatusCompleted, Result: result}
	return nil
}

func (q *memQueue) SetError(_ context.Context, jobID string, message string) error {
	q.records[jobID] = &models.JobResult{JobID: jobID, Status: models.StatusFailed, Error: message}
	return nil
}

func (q *memQueue) GetResult(_ context.Context, jobID string) (*models.JobResult, error) {
	if r, ok := q.records[jobID]; ok {
		return r, nil
	}
	return &models.JobResult{JobID: jobID, Status: models.StatusNotFound}, nil
}

type memStore struct {
	jobs    map[string]*models.Job
	results map[string]*models.JobResult
	recent  []*models.SignalResult
}

func newMemStore() *memStore {
	return &memStore{
		jobs:    make(map[string]*models.Job),
		results: make(map[string]*models.JobResult),
	}
}

func (s *memStore) CreateJob(_ context.Context, job *models.Job) error {
	s.jobs[job.ID] = job
	return nil
}

func (s *memStore) UpdateJobStatus(_ context.Context, jobID string, status models.JobStatus, errMsg string) error {
	if j, ok := s.jobs[jobID]; ok {
		j.Status = status
		j.Error = errMsg
	}
	return nil
}

func (s *memStore) UpsertResult(context.Context, *models.SignalResult) error { return nil }

func (s *memStore) GetResult(_ context.Context, jobID string) (*models.JobResult, error) {
	if r, ok := s.results[jobID]; ok {
		return r, nil
	}
	return &models.JobResult{JobID: jobID, Status: models.StatusNotFound}, nil
}

func (s *memStore) RecentResults(_ context.Context, userID, symbol string, limit int) ([]*models.SignalResult, error) {
	return s.recent, nil
}

func setup(t *testing.T) (*echo.Echo, *memQueue, *memStore) {
	t.Helper()
	q := newMemQueue()
	s := newMemStore()
	h := NewSignalsHandler(testLogger(t), q, s)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, q, s
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateSignalAccepted(t *testing.T) {
	e, q, s := setup(t)

	rec := doRequest(e, http.MethodPost, "/api/signals",
		`{"symbol":"BTCUSDT","risk":"safe"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		Status int `json:"status"`
		Data   struct {
			JobID string `json:"job_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != http.StatusAccepted {
		t.Fatalf("api status = %d", resp.Status)
	}
	if resp.Data.JobID == "" {
		t.Fatal("expected job id")
	}

	if len(q.jobs) != 1 {
		t.Fatalf("enqueued jobs = %d", len(q.jobs))
	}
	job := q.jobs[0]
	if job.Risk != models.RiskSafe {
		t.Fatalf("risk = %s", job.Risk)
	}
	// Defaults applied by validation.
	if job.Holding != models.HoldingAuto || job.UserID != "anonymous" {
		t.Fatalf("defaults not applied: %+v", job)
	}
	// Durable row written at enqueue time.
	if _, ok := s.jobs[job.ID]; !ok {
		t.Fatal("job not recorded in durable store")
	}
}

func TestCreateSignalValidation(t *testing.T) {
	e, q, _ := setup(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing symbol", `{"risk":"safe"}`},
		{"lowercase symbol", `{"symbol":"btcusdt"}`},
		{"short symbol", `{"symbol":"BTC"}`},
		{"bad risk", `{"symbol":"BTCUSDT","risk":"yolo"}`},
		{"bad holding", `{"symbol":"BTCUSDT","holding":"forever"}`},
		{"bad image", `{"symbol":"BTCUSDT","image_base64":"%%%"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodPost, "/api/signals", tc.body)
			var resp struct {
				Status int `json:"status"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != http.StatusBadRequest {
				t.Fatalf("api status = %d, body = %s", resp.Status, rec.Body)
			}
		})
	}
	if len(q.jobs) != 0 {
		t.Fatalf("invalid requests must not enqueue, got %d jobs", len(q.jobs))
	}
}

func TestGetSignalFromQueue(t *testing.T) {
	e, q, _ := setup(t)

	q.records["j1"] = &models.JobResult{JobID: "j1", Status: models.StatusProcessing}

	rec := doRequest(e, http.MethodGet, "/api/signals/j1", "")
	var resp struct {
		Data models.JobResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Status != models.StatusProcessing {
		t.Fatalf("status = %s", resp.Data.Status)
	}
}

func TestGetSignalFallsBackToStore(t *testing.T) {
	e, _, s := setup(t)

	s.results["j2"] = &models.JobResult{
		JobID:  "j2",
		Status: models.StatusCompleted,
		Result: &models.SignalResult{JobID: "j2", Setup: models.TradeSetup{Side: models.SideLong, Entry: 95}},
	}

	rec := doRequest(e, http.MethodGet, "/api/signals/j2", "")
	var resp struct {
		Data models.JobResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Status != models.StatusCompleted || resp.Data.Result == nil {
		t.Fatalf("fallback result = %+v", resp.Data)
	}
}

func TestGetSignalUnknown(t *testing.T) {
	e, _, _ := setup(t)

	rec := doRequest(e, http.MethodGet, "/api/signals/nope", "")
	var resp struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != http.StatusNotFound {
		t.Fatalf("api status = %d", resp.Status)
	}
}

func TestHistory(t *testing.T) {
	e, _, s := setup(t)

	s.recent = []*models.SignalResult{
		{JobID: "j1", Setup: models.TradeSetup{Side: models.SideLong}},
		{JobID: "j2", Setup: models.TradeSetup{Side: models.SideNoTrade}},
	}

	rec := doRequest(e, http.MethodGet, "/api/signals/history?symbol=BTCUSDT&limit=10", "")
	var resp struct {
		Status int `json:"status"`
		Data   struct {
			Rows  []models.SignalResult `json:"rows"`
			Total int64                 `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("api status = %d", resp.Status)
	}
	if resp.Data.Total != 2 || len(resp.Data.Rows) != 2 {
		t.Fatalf("rows = %d, total = %d", len(resp.Data.Rows), resp.Data.Total)
	}
}

func TestHistoryLimitValidation(t *testing.T) {
	e, _, _ := setup(t)

	rec := doRequest(e, http.MethodGet, "/api/signals/history?limit=1000", "")
	var resp struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("api status = %d", resp.Status)
	}
}
