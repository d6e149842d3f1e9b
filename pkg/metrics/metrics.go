// Package metrics records proxy call outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder observes one completed proxy call.
type Recorder interface {
	Observe(role, chain, outcome string, elapsed time.Duration)
}

// NopRecorder discards every observation.
type NopRecorder struct{}

func (NopRecorder) Observe(string, string, string, time.Duration) {}

// PrometheusRecorder exports call counts and durations.
type PrometheusRecorder struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
//
// Parameters:
//   - reg: The registerer to attach the collectors to
//
// Returns:
//   - *PrometheusRecorder: The recorder
//   - error: An error if registration fails, e.g. on a duplicate registration
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txengine",
			Name:      "proxy_calls_total",
			Help:      "Number of proxy calls by role, chain and outcome",
		}, []string{"role", "chain", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "txengine",
			Name:      "proxy_call_duration_seconds",
			Help:      "Duration of proxy calls by role and chain",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role", "chain"}),
	}
	if err := reg.Register(r.calls); err != nil {
		return nil, err
	}
	if err := reg.Register(r.duration); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PrometheusRecorder) Observe(role, chain, outcome string, elapsed time.Duration) {
	r.calls.WithLabelValues(role, chain, outcome).Inc()
	r.duration.WithLabelValues(role, chain).Observe(elapsed.Seconds())
}
