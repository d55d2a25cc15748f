package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument the scoring service exports.
type Metrics struct {
	registry *prometheus.Registry

	ReadingsComputed     prometheus.Counter
	ReadingCacheHits     prometheus.Counter
	ReadingCacheMisses   prometheus.Counter
	UncalibratedReadings prometheus.Counter
	TrendOmitted         prometheus.Counter
	ScoreDuration        prometheus.Histogram

	CalibrationAgeDays prometheus.Gauge
	CalibrationStale   prometheus.Gauge
	CalibrationRuns    prometheus.Counter
	CalibrationErrors  prometheus.Counter
}

// New builds the metric set on a fresh registry, with Go runtime and
// process collectors attached.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newOn(registry)
}

// NewForTesting builds the metric set on a bare registry so parallel tests
// never collide on registration.
func NewForTesting() *Metrics {
	return newOn(prometheus.NewRegistry())
}

func newOn(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		ReadingsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arca",
			Subsystem: "engine",
			Name:      "readings_computed_total",
			Help:      "Daily reading sets computed, cache misses included.",
		}),
		ReadingCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arca",
			Subsystem: "engine",
			Name:      "reading_cache_hits_total",
			Help:      "Daily reading sets served from cache.",
		}),
		ReadingCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arca",
			Subsystem: "engine",
			Name:      "reading_cache_misses_total",
			Help:      "Daily reading cache lookups that missed.",
		}),
		UncalibratedReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arca",
			Subsystem: "engine",
			Name:      "uncalibrated_readings_total",
			Help:      "Meter readings normalized through the theoretical fallback.",
		}),
		TrendOmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arca",
			Subsystem: "engine",
			Name:      "trend_omitted_total",
			Help:      "Reading sets delivered without trends because the prior day failed.",
		}),
		ScoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arca",
			Subsystem: "engine",
			Name:      "score_duration_seconds",
			Help:      "Wall time of one full daily scoring run.",
			Buckets:   prometheus.DefBuckets,
		}),
		CalibrationAgeDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arca",
			Subsystem: "calibration",
			Name:      "artifact_age_days",
			Help:      "Age of the loaded calibration artifact.",
		}),
		CalibrationStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arca",
			Subsystem: "calibration",
			Name:      "artifact_stale",
			Help:      "1 when the loaded calibration artifact exceeds the staleness threshold.",
		}),
		CalibrationRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arca",
			Subsystem: "calibration",
			Name:      "runs_total",
			Help:      "Completed calibration pipeline runs.",
		}),
		CalibrationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arca",
			Subsystem: "calibration",
			Name:      "run_errors_total",
			Help:      "Calibration pipeline runs that failed.",
		}),
	}
	registry.MustRegister(
		m.ReadingsComputed,
		m.ReadingCacheHits,
		m.ReadingCacheMisses,
		m.UncalibratedReadings,
		m.TrendOmitted,
		m.ScoreDuration,
		m.CalibrationAgeDays,
		m.CalibrationStale,
		m.CalibrationRuns,
		m.CalibrationErrors,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
