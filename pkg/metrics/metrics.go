// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// StageDuration tracks per-stage processing latency.
	StageDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "happychatty_stage_duration_seconds",
			Help:    "Processing time per pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"stage"},
	)

	EventsEmitted = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "happychatty_events_emitted_total",
			Help: "Total analysis events delivered to the hub",
		},
	)

	EventsDropped = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "happychatty_events_dropped_total",
			Help: "Events dropped for slow or dead subscribers",
		},
	)

	ActiveSubscribers = promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "happychatty_active_subscribers",
			Help: "Currently connected websocket subscribers",
		},
	)

	CacheHits = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "happychatty_sentiment_cache_hits_total",
			Help: "Sentiment cache hits",
		},
	)

	CacheMisses = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "happychatty_sentiment_cache_misses_total",
			Help: "Sentiment cache misses",
		},
	)

	CollaboratorErrors = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "happychatty_collaborator_errors_total",
			Help: "Failures from external collaborators, by collaborator",
		},
		[]string{"collaborator"},
	)

	UtterancesFinalized = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "happychatty_utterances_finalized_total",
			Help: "Utterances that passed validation",
		},
	)

	UtterancesDiscarded = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "happychatty_utterances_discarded_total",
			Help: "Utterances discarded by validation",
		},
	)

	AudioChunksDropped = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "happychatty_audio_chunks_dropped_total",
			Help: "Raw audio chunks dropped on the hand-off queue",
		},
	)
)

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
