package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for pipeline runs and episode output.
type Collector struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	itemsCollected   prometheus.Counter
	itemsNew         prometheus.Counter
	episodesRendered prometheus.Counter
	lastRunTimestamp *prometheus.GaugeVec
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedcast",
		Subsystem: "runs",
		Name:      "total",
		Help:      "Total number of finished runs by kind and status.",
	}, []string{"kind", "status"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feedcast",
		Subsystem: "runs",
		Name:      "duration_seconds",
		Help:      "Duration distribution for finished runs.",
		Buckets:   []float64{1, 5, 15, 60, 120, 300, 600, 1800},
	}, []string{"kind"})

	itemsCollected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feedcast",
		Subsystem: "items",
		Name:      "collected_total",
		Help:      "Total posts observed during collection, duplicates included.",
	})

	itemsNew := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feedcast",
		Subsystem: "items",
		Name:      "new_total",
		Help:      "Total posts stored for the first time.",
	})

	episodesRendered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feedcast",
		Subsystem: "episodes",
		Name:      "rendered_total",
		Help:      "Total episodes rendered to audio.",
	})

	lastRunTimestamp := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "feedcast",
		Subsystem: "runs",
		Name:      "last_finished_timestamp_seconds",
		Help:      "Unix time of the most recently finished run per kind.",
	}, []string{"kind"})

	collectors := []prometheus.Collector{
		runsTotal, runDuration, itemsCollected, itemsNew, episodesRendered, lastRunTimestamp,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:         registry,
		runsTotal:        runsTotal,
		runDuration:      runDuration,
		itemsCollected:   itemsCollected,
		itemsNew:         itemsNew,
		episodesRendered: episodesRendered,
		lastRunTimestamp: lastRunTimestamp,
	}, nil
}

// Handler returns an HTTP handler for exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RunFinished records one finished run.
func (c *Collector) RunFinished(kind, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(kind, status).Inc()
	c.runDuration.WithLabelValues(kind).Observe(duration.Seconds())
	c.lastRunTimestamp.WithLabelValues(kind).SetToCurrentTime()
}

// ItemsCollected records posts observed during a collection run.
func (c *Collector) ItemsCollected(observed, stored int) {
	if c == nil {
		return
	}
	c.itemsCollected.Add(float64(observed))
	c.itemsNew.Add(float64(stored))
}

// EpisodeRendered records one rendered episode.
func (c *Collector) EpisodeRendered() {
	if c == nil {
		return
	}
	c.episodesRendered.Inc()
}
