package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_quote_requests_total",
			Help: "Total number of quote fetches issued to backends",
		},
		[]string{"source", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_quote_duration_seconds",
			Help:    "Quote fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_quote_cache_hits_total",
		Help: "Total number of quote cache hits",
	})

	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_quote_cache_misses_total",
		Help: "Total number of quote cache misses",
	})

	// Route composition metrics
	RoutesComposed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meridian_routes_composed",
		Help:    "Number of merged routes produced per composition",
		Buckets: []float64{1, 2, 3, 5, 8, 13},
	})

	ComposerFailSoft = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_composer_failsoft_total",
		Help: "Total number of compositions that failed soft to an empty route list",
	})

	// Gas estimation metrics
	GasEstimates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_gas_estimates_total",
			Help: "Total number of per-candidate gas estimations",
		},
		[]string{"status"},
	)

	GasEstimateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meridian_gas_estimate_duration_seconds",
		Help:    "Gas estimation batch duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Selector metrics
	SelectorDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_selector_decisions_total",
			Help: "Total number of best-trade selector decisions",
		},
		[]string{"outcome"},
	)

	SelectorSwitches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_selector_switches_total",
		Help: "Total number of times the selected trade changed",
	})

	// Pipeline metrics
	StaleDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_stale_discards_total",
		Help: "Total number of responses discarded because their swap intent changed in flight",
	})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meridian_refresh_duration_seconds",
		Help:    "End-to-end refresh duration (fetch, compose, estimate, select) in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Chain head metrics
	HeadHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meridian_head_height",
		Help: "Last observed chain head height",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
