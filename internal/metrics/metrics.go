// Package metrics exposes run counters over a dedicated Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jumpcut/internal/progress"
)

// Collector bundles the daemon's run metrics.
type Collector struct {
	registry *prometheus.Registry

	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsFailed    prometheus.Counter
	runsCancelled prometheus.Counter
	activeRuns    prometheus.Gauge
}

// New builds a collector with its own registry so tests never collide on
// the global default.
func New() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Collector{
		registry: registry,
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "jumpcut_runs_started_total",
			Help: "Processing runs accepted.",
		}),
		runsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "jumpcut_runs_completed_total",
			Help: "Runs that produced an output file.",
		}),
		runsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "jumpcut_runs_failed_total",
			Help: "Runs that ended in an error.",
		}),
		runsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "jumpcut_runs_cancelled_total",
			Help: "Runs cancelled by the user.",
		}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jumpcut_active_runs",
			Help: "Runs currently processing or awaiting a render request.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RunStarted counts a newly accepted run.
func (c *Collector) RunStarted() {
	if c == nil {
		return
	}
	c.runsStarted.Inc()
	c.activeRuns.Inc()
}

// RunFinished counts a terminal stage and releases the active slot.
func (c *Collector) RunFinished(stage progress.Stage) {
	if c == nil {
		return
	}
	c.activeRuns.Dec()
	switch stage {
	case progress.StageComplete:
		c.runsCompleted.Inc()
	case progress.StageCancelled:
		c.runsCancelled.Inc()
	default:
		c.runsFailed.Inc()
	}
}
