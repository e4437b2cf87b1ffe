// Package metrics counts what a pipeline run did. There is no HTTP listener:
// a run is a short-lived process, so the numbers are exported to a
// node_exporter textfile at the end of the run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "technews"

type Metrics struct {
	registry *prometheus.Registry

	itemsFetched  *prometheus.CounterVec
	sourceErrors  *prometheus.CounterVec
	itemsPicked   prometheus.Counter
	renders       *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	runDuration   prometheus.Gauge
	lastSuccessTS prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.itemsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_fetched_total",
		Help:      "News items returned by a source before filtering and dedup",
	}, []string{"source"})
	m.sourceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_errors_total",
		Help:      "Source fetches that failed at least partially",
	}, []string{"source"})
	m.itemsPicked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_picked_total",
		Help:      "Never seen items selected for publishing",
	})
	m.renders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posters_rendered_total",
		Help:      "Poster renders by result",
	}, []string{"result"})
	m.publishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_published_total",
		Help:      "LinkedIn publish attempts by result",
	}, []string{"result"})
	m.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run",
	})
	m.lastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})

	m.registry.MustRegister(
		m.itemsFetched,
		m.sourceErrors,
		m.itemsPicked,
		m.renders,
		m.publishes,
		m.runDuration,
		m.lastSuccessTS,
	)
	return m
}

// Registry exposes the collectors, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SourceFetched(source string, items int, err error) {
	m.itemsFetched.WithLabelValues(source).Add(float64(items))
	if err != nil {
		m.sourceErrors.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) Picked(n int) {
	m.itemsPicked.Add(float64(n))
}

func (m *Metrics) Rendered(err error) {
	m.renders.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Published(err error) {
	m.publishes.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RunFinished(d time.Duration, at time.Time) {
	m.runDuration.Set(d.Seconds())
	m.lastSuccessTS.Set(float64(at.Unix()))
}

// WriteTextfile atomically writes all metrics in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to '%s' with %w", path, err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
