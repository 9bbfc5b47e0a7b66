package worker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resultsTotal        *prometheus.CounterVec
	songsInsertedTotal  *prometheus.CounterVec
	cyclesTotal         *prometheus.CounterVec
	fetchDuration       prometheus.Histogram
	rateLimitWaitSeconds prometheus.Histogram

	metricsOnce sync.Once
)

// InitMetrics registers the worker collectors. It is safe to call more than
// once.
func InitMetrics() {
	metricsOnce.Do(func() {
		resultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songs_worker_results_total",
				Help: "Ledger entries written, labeled by worker and status.",
			},
			[]string{"worker", "status"},
		)
		songsInsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songs_worker_songs_inserted_total",
				Help: "Songs inserted by reconciliation.",
			},
			[]string{"worker"},
		)
		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songs_worker_cycles_total",
				Help: "Poll cycles run, labeled by result (ok, error).",
			},
			[]string{"result"},
		)
		fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "songs_worker_fetch_duration_seconds",
			Help:    "Time to obtain an anime page, cache hits included.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		})
		rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "songs_worker_ratelimit_wait_seconds",
			Help:    "Time spent waiting for an outbound request permit.",
			Buckets: []float64{0.001, 0.1, 0.5, 1, 2, 4, 8, 16},
		})
	})
}

// ObserveRateLimitWait is meant for ratelimit.Limiter.OnWait.
func ObserveRateLimitWait(d time.Duration) {
	InitMetrics()
	rateLimitWaitSeconds.Observe(d.Seconds())
}

func fetchTimer() func() {
	start := time.Now()
	return func() { fetchDuration.Observe(time.Since(start).Seconds()) }
}
