package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flipbook",
			Name:      "pages_rendered_total",
			Help:      "Total page renders by result (success, error)",
		},
		[]string{"result"},
	)

	renderLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "flipbook",
			Name:      "page_render_duration_seconds",
			Help:      "Duration of single page rasterization",
			Buckets:   prometheus.DefBuckets,
		},
	)

	loads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flipbook",
			Name:      "loads_total",
			Help:      "Document loads by final state (ready, failed)",
		},
		[]string{"state"},
	)

	autoFlips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flipbook",
			Name:      "autoflip_events_total",
			Help:      "Auto-flip scheduler events by action (tick, advance, finished)",
		},
		[]string{"action"},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flipbook",
			Name:      "asset_cache_requests_total",
			Help:      "Asset cache lookups by result (hit, miss, bypass)",
		},
		[]string{"result"},
	)

	cacheInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flipbook",
			Name:      "asset_cache_installs_total",
			Help:      "Asset cache install attempts by cache name and result",
		},
		[]string{"cache", "result"},
	)

	sessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flipbook",
			Name:      "sessions_active",
			Help:      "Flip sessions currently held by the viewer",
		},
	)
)

var once sync.Once

// Init registers collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(pagesRendered, renderLatency, loads, autoFlips, cacheRequests, cacheInstalls, sessions)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveRender(result string, dur time.Duration) {
	pagesRendered.WithLabelValues(result).Inc()
	renderLatency.Observe(dur.Seconds())
}

func IncLoad(state string)                { loads.WithLabelValues(state).Inc() }
func IncAutoFlip(action string)           { autoFlips.WithLabelValues(action).Inc() }
func IncCache(result string)              { cacheRequests.WithLabelValues(result).Inc() }
func IncCacheInstall(name, result string) { cacheInstalls.WithLabelValues(name, result).Inc() }
func SetSessions(n int)                   { sessions.Set(float64(n)) }
