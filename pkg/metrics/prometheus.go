package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes Prometheus metrics for the signal pipeline. Counters and
// histograms are registered on the default registry and served by the
// /metrics endpoint of the HTTP server.
type Recorder struct {
	jobsEnqueued   *prometheus.CounterVec
	jobsProcessed  *prometheus.CounterVec
	stageLatency   *prometheus.HistogramVec
	queueWait      prometheus.Gauge
	upstreamErrors *prometheus.CounterVec
}

// NewRecorder creates and registers the pipeline metrics.
func NewRecorder() *Recorder {
	return &Recorder{
		jobsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signalforge_jobs_enqueued_total",
			Help: "Signal jobs accepted by the API.",
		}, []string{"symbol"}),
		jobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signalforge_jobs_processed_total",
			Help: "Signal jobs finished by the worker, by outcome and side.",
		}, []string{"status", "side"}),
		stageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "signalforge_stage_duration_seconds",
			Help: "Latency of pipeline stages.",
			// LLM calls can take tens of seconds.
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		queueWait: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "signalforge_queue_wait_seconds",
			Help: "Time the most recent job spent queued before processing.",
		}),
		upstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signalforge_upstream_errors_total",
			Help: "Errors returned by upstream dependencies.",
		}, []string{"source"}),
	}
}

// RecordEnqueued counts an accepted job.
func (r *Recorder) RecordEnqueued(symbol string) {
	r.jobsEnqueued.WithLabelValues(symbol).Inc()
}

// RecordProcessed counts a finished job.
func (r *Recorder) RecordProcessed(status string, side string) {
	r.jobsProcessed.WithLabelValues(status, side).Inc()
}

// RecordStageLatency observes the duration of one pipeline stage.
func (r *Recorder) RecordStageLatency(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordQueueWait records how long the latest job waited in the queue.
func (r *Recorder) RecordQueueWait(seconds float64) {
	r.queueWait.Set(seconds)
}

// RecordUpstreamError counts an upstream failure by source.
func (r *Recorder) RecordUpstreamError(source string) {
	r.upstreamErrors.WithLabelValues(source).Inc()
}
