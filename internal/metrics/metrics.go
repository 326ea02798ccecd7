// Package metrics exposes Prometheus collectors for the crawl engine.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tasksTotal              *prometheus.CounterVec
	fetchesTotal            *prometheus.CounterVec
	fetchDurationSeconds    *prometheus.HistogramVec
	sessionAcquireAttempts  prometheus.Histogram
	sessionAcquireMisses    prometheus.Counter
	sessionPenaltiesTotal   *prometheus.CounterVec
	contentDedupTotal       *prometheus.CounterVec
	renderFallbacksTotal    prometheus.Counter
	activeWorkers           prometheus.Gauge
	publishedEventsTotal    prometheus.Counter
	publishedEventsFailures prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_tasks_total",
				Help: "Total number of tasks executed, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_fetches_total",
				Help: "Total number of fetches, labeled by strategy and status class.",
			},
			[]string{"strategy", "status_class"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawl_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies, labeled by strategy.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"strategy"},
		)

		sessionAcquireAttempts = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawl_session_acquire_attempts",
				Help:    "Histogram of pop attempts per session acquisition.",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		)

		sessionAcquireMisses = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_session_acquire_misses_total",
				Help: "Total acquisitions that exhausted every attempt without a session.",
			},
		)

		sessionPenaltiesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_session_penalties_total",
				Help: "Total session health penalties applied, labeled by tier.",
			},
			[]string{"tier"},
		)

		contentDedupTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_content_dedup_total",
				Help: "Content store outcomes, labeled stored or duplicate.",
			},
			[]string{"result"},
		)

		renderFallbacksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_render_fallbacks_total",
				Help: "Total prefer-mode render failures served by the static strategy.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawl_active_workers",
				Help: "Number of workers currently executing a task.",
			},
		)

		publishedEventsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_ready_events_published_total",
				Help: "Total ready notifications published downstream.",
			},
		)

		publishedEventsFailures = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_ready_events_failed_total",
				Help: "Total ready notification publish failures.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTask increments the task counter for the kind/outcome pair.
func ObserveTask(kind, outcome string) {
	tasksTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveFetch records one fetch with its strategy, status and duration.
func ObserveFetch(strategy string, status int, duration time.Duration) {
	fetchesTotal.WithLabelValues(strategy, statusClass(status)).Inc()
	fetchDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObserveSessionAcquire records the attempt count of one acquisition.
func ObserveSessionAcquire(attempts int, found bool) {
	sessionAcquireAttempts.Observe(float64(attempts))
	if !found {
		sessionAcquireMisses.Inc()
	}
}

// ObserveSessionPenalty increments the penalty counter for a tier.
func ObserveSessionPenalty(tier string) {
	sessionPenaltiesTotal.WithLabelValues(tier).Inc()
}

// ObserveDedup records a content store outcome.
func ObserveDedup(stored bool) {
	result := "duplicate"
	if stored {
		result = "stored"
	}
	contentDedupTotal.WithLabelValues(result).Inc()
}

// ObserveRenderFallback increments the prefer-mode fallback counter.
func ObserveRenderFallback() {
	renderFallbacksTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObservePublish records a ready event publish attempt.
func ObservePublish(err error) {
	if err != nil {
		publishedEventsFailures.Inc()
		return
	}
	publishedEventsTotal.Inc()
}

func statusClass(status int) string {
	if status <= 0 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}
