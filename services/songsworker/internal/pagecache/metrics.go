package pagecache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal *prometheus.CounterVec

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		lookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "page_cache_lookups_total",
				Help: "Page cache lookups, labeled by result (hit, miss, error).",
			},
			[]string{"result"},
		)
	})
}
