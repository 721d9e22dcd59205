package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports daemon counters to Prometheus. It implements
// viewconfig.Observer.
type Metrics struct {
	registry *prometheus.Registry

	buildSeconds      prometheus.Histogram
	configsReused     prometheus.Counter
	configsEvicted    prometheus.Counter
	buildFilesChanged prometheus.Counter
	requests          *prometheus.CounterVec
}

// NewMetrics registers the daemon metrics on reg. A nil reg gets a fresh
// registry. entries and pending back gauges and may be nil.
func NewMetrics(reg *prometheus.Registry, entries, pending func() float64) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	m := &Metrics{
		registry: reg,
		buildSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ccflags",
			Name:      "config_build_seconds",
			Help:      "Time to resolve flags and initialise an engine for one file.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		configsReused: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ccflags",
			Name:      "configs_reused_total",
			Help:      "Loads answered by an existing view config.",
		}),
		configsEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ccflags",
			Name:      "configs_evicted_total",
			Help:      "View configs removed by the reaper.",
		}),
		buildFilesChanged: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ccflags",
			Name:      "build_files_changed_total",
			Help:      "Build description changes seen by the watcher.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccflags",
			Name:      "requests_total",
			Help:      "Daemon requests by method and result.",
		}, []string{"method", "result"}),
	}
	if entries != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ccflags",
			Name:      "view_configs",
			Help:      "View configs currently cached.",
		}, entries)
	}
	if pending != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ccflags",
			Name:      "pool_pending_jobs",
			Help:      "Jobs waiting for a worker.",
		}, pending)
	}
	return m
}

// ConfigBuilt records one config build.
func (m *Metrics) ConfigBuilt(elapsed time.Duration) {
	m.buildSeconds.Observe(elapsed.Seconds())
}

// ConfigReused records a load served by the cache.
func (m *Metrics) ConfigReused() { m.configsReused.Inc() }

// ConfigsEvicted records reaper evictions.
func (m *Metrics) ConfigsEvicted(n int) { m.configsEvicted.Add(float64(n)) }

// BuildFileChanged records one watcher event.
func (m *Metrics) BuildFileChanged() { m.buildFilesChanged.Inc() }

// Request records one daemon request. err == nil counts as "ok".
func (m *Metrics) Request(method string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.requests.WithLabelValues(method, result).Inc()
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
