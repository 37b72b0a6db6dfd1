// Package metrics records run counters in a private Prometheus registry
// that can be written out as a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/extract"
	"github.com/agentstation/edimap/pkg/reconcile"
)

const namespace = "edimap"

// Outcome label values.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Recorder holds the run counters.
type Recorder struct {
	registry *prometheus.Registry

	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	chunks   *prometheus.CounterVec
	batches  *prometheus.CounterVec
	rows     *prometheus.CounterVec
	flags    prometheus.Counter
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "attempts_total",
			Help:      "Backend call attempts by backend and outcome.",
		}, []string{"backend", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of backend call attempts.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"backend"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "chunks_total",
			Help:      "Document chunks by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "batches_total",
			Help:      "Semantic match batches by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "rows_total",
			Help:      "Grid rows by resolution source.",
		}, []string{"source"}),
		flags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "flags_total",
			Help:      "Rows flagged for uncovered allowed values.",
		}),
	}
	r.registry.MustRegister(r.attempts, r.latency, r.chunks, r.batches, r.rows, r.flags)
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveAttempt implements backend.Observer.
func (r *Recorder) ObserveAttempt(backend string, _ int, elapsed time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	r.attempts.WithLabelValues(backend, outcome).Inc()
	r.latency.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// RecordExtraction counts chunk outcomes.
func (r *Recorder) RecordExtraction(res *extract.Result) {
	if res == nil {
		return
	}
	failed := len(res.FailedChunks)
	r.chunks.WithLabelValues(OutcomeOK).Add(float64(res.Chunks - failed))
	r.chunks.WithLabelValues(OutcomeFailed).Add(float64(failed))
}

// RecordResult counts match batches, rows by source and flags.
func (r *Recorder) RecordResult(res *reconcile.Result) {
	if res == nil {
		return
	}
	s := res.Metadata.Stats
	r.batches.WithLabelValues(OutcomeOK).Add(float64(s.MatchBatches - s.MatchBatchesFailed))
	r.batches.WithLabelValues(OutcomeFailed).Add(float64(s.MatchBatchesFailed))
	for _, src := range edi.Sources {
		r.rows.WithLabelValues(string(src)).Add(float64(s.BySource[src]))
	}
	r.flags.Add(float64(len(res.Flags)))
}

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
