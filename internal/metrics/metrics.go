package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// #region recorder
// Recorder owns a private registry with the core's counters. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	encodes     prometheus.Counter
	activations prometheus.Counter
	allocations *prometheus.CounterVec
	novelty     prometheus.Histogram
}

// NewRecorder registers the core metrics on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		encodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adpc_encodes_total",
			Help: "Symbols encoded into fingerprints.",
		}),
		activations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adpc_activations_total",
			Help: "Region activations recorded by the familiarity tracker.",
		}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adpc_allocations_total",
			Help: "Allocation decisions by action.",
		}, []string{"action"}),
		novelty: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adpc_novelty",
			Help:    "Novelty scores observed before activation.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	r.registry.MustRegister(r.encodes, r.activations, r.allocations, r.novelty)
	return r
}
// #endregion recorder

// #region observe
func (r *Recorder) Encoded(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.encodes.Add(float64(n))
}

func (r *Recorder) Activated() {
	if r == nil {
		return
	}
	r.activations.Inc()
}

func (r *Recorder) Allocated(action string) {
	if r == nil {
		return
	}
	r.allocations.WithLabelValues(action).Inc()
}

func (r *Recorder) Novelty(score float64) {
	if r == nil {
		return
	}
	r.novelty.Observe(score)
}
// #endregion observe

// #region exposition
// Registry exposes the underlying registry, nil for a nil Recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
// #endregion exposition
