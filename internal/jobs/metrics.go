package jobs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the job pipeline collectors, registered on their own
// registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Submitted     prometheus.Counter
	Completed     *prometheus.CounterVec
	Duration      prometheus.Histogram
	ScenesClamped prometheus.Counter
	QueueDepth    prometheus.Gauge
}

// NewMetrics creates and registers the job collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Submitted: f.NewCounter(prometheus.CounterOpts{
			Name: "toolbox_jobs_submitted_total",
			Help: "Uploads accepted for processing",
		}),
		Completed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "toolbox_jobs_completed_total",
			Help: "Jobs that reached a terminal status",
		}, []string{"status"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "toolbox_job_duration_seconds",
			Help:    "Time from a worker picking up a job to its terminal status",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		ScenesClamped: f.NewCounter(prometheus.CounterOpts{
			Name: "toolbox_scenes_clamped_total",
			Help: "Scenes whose normalized coordinates were clamped to [-1, 1]",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "toolbox_jobs_queued",
			Help: "Jobs waiting for a worker",
		}),
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
