// package metrics holds the Prometheus collectors for the resolution pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	StreamCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "stream_cache_lookups_total",
		Help:      "Stream cache lookups by result (hit, miss, expired).",
	}, []string{"result"})

	StreamResolveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "stream_resolve_total",
		Help:      "Blocking stream resolutions by outcome.",
	}, []string{"outcome"})

	StreamResolveAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "stream_resolve_attempts_total",
		Help:      "Backend calls issued by blocking resolutions, including retries.",
	})

	StreamResolveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "resolver",
		Name:      "stream_resolve_duration_seconds",
		Help:      "Wall time of blocking resolutions that reached the backend.",
		Buckets:   []float64{0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	})

	PrefetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "prefetch_total",
		Help:      "Prefetch requests by outcome (issued, skipped, ok, failed).",
	}, []string{"outcome"})

	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "resolver",
		Name:      "in_flight_resolutions",
		Help:      "Track ids currently being resolved or prefetched.",
	})

	LyricsLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "lyrics_lookups_total",
		Help:      "Lyrics lookups by where the answer came from (cache, store, local, remote, none).",
	}, []string{"source"})

	LyricsProviderTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "lyrics_provider_requests_total",
		Help:      "Lyrics provider calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	SyncItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "sync_items_total",
		Help:      "Cross-catalog sync items by outcome (resolved, failed).",
	}, []string{"outcome"})

	SyncBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "sync_batches_total",
		Help:      "Cross-catalog sync batches by result (success, retry, failure).",
	}, []string{"result"})

	SyncRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "resolver",
		Name:      "sync_unresolved_remaining",
		Help:      "Unresolved imported tracks observed after the last batch.",
	})
)

// Register adds every pipeline collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		StreamCacheLookups,
		StreamResolveTotal,
		StreamResolveAttempts,
		StreamResolveDuration,
		PrefetchTotal,
		InFlight,
		LyricsLookups,
		LyricsProviderTotal,
		SyncItemsTotal,
		SyncBatchesTotal,
		SyncRemaining,
	)
}
