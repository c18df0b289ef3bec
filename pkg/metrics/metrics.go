// Package metrics exposes run counters and latencies to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/r3d91ll/patchscope/pkg/experiment"
)

// Request outcomes.
const (
	OutcomeExecuted = "executed"
	OutcomeSkipped  = "skipped"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Recorder turns experiment events into Prometheus metrics on its own
// registry. It implements experiment.Sink.
type Recorder struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	buckets     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	strong      *prometheus.GaugeVec
	experiments *prometheus.CounterVec
}

var _ experiment.Sink = (*Recorder)(nil)

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchscope_requests_total",
				Help: "Patch requests by outcome",
			},
			[]string{"experiment", "outcome"},
		),
		buckets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchscope_results_total",
				Help: "Patch results by classification bucket",
			},
			[]string{"experiment", "bucket"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patchscope_patch_duration_seconds",
				Help:    "Latency of a single patch request, extraction through generation",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"experiment"},
		),
		strong: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchscope_strong_matches",
				Help: "Strong matches of the most recent run per experiment and entity",
			},
			[]string{"experiment", "entity"},
		),
		experiments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchscope_experiments_completed_total",
				Help: "Completed experiments by mode",
			},
			[]string{"mode"},
		),
	}
	r.registry.MustRegister(r.requests, r.buckets, r.duration, r.strong, r.experiments)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Record updates metrics from e.
func (r *Recorder) Record(e experiment.Event) {
	switch e.Type {
	case experiment.EventPatchSuccess, experiment.EventPatchFailed:
		if e.Result == nil {
			return
		}
		outcome := OutcomeExecuted
		if e.Result.Error != "" {
			outcome = OutcomeFailed
		}
		r.requests.WithLabelValues(e.Experiment, outcome).Inc()
		r.buckets.WithLabelValues(e.Experiment, string(e.Bucket)).Inc()
		r.duration.WithLabelValues(e.Experiment).Observe(e.Result.DurationMS / 1000)

	case experiment.EventPatchSkipped:
		r.requests.WithLabelValues(e.Experiment, OutcomeSkipped).Inc()

	case experiment.EventPatchRejected:
		r.requests.WithLabelValues(e.Experiment, OutcomeRejected).Inc()

	case experiment.EventAnalysisComplete:
		if e.Analysis != nil {
			r.strong.WithLabelValues(e.Experiment, e.Entity).Set(float64(e.Analysis.Summary.StrongCount))
		}

	case experiment.EventExperimentComplete:
		r.experiments.WithLabelValues(e.Experiment).Inc()
	}
}
