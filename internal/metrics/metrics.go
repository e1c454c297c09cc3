// Package metrics holds the prometheus collectors for the feeds and the
// reconciliation engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Feed label values.
const (
	FeedBook  = "book"
	FeedTrade = "trade"
)

// Discard reasons.
const (
	ReasonInvalidJSON   = "invalid_json"
	ReasonTopicMismatch = "topic_mismatch"
	ReasonNoData        = "no_data"
	ReasonBufferFull    = "buffer_full"
)

var (
	MessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ladder_feed_messages_total",
		Help: "Raw feed messages received by feed",
	}, []string{"feed"})

	MessagesDiscarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ladder_feed_messages_discarded_total",
		Help: "Feed messages discarded by feed and reason",
	}, []string{"feed", "reason"})

	FeedReconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ladder_feed_reconnects_total",
		Help: "Websocket reconnects by feed",
	}, []string{"feed"})

	FeedConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ladder_feed_connected",
		Help: "1 while the feed websocket circuit is closed",
	}, []string{"feed"})

	SnapshotsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ladder_snapshots_published_total",
		Help: "Book snapshots made visible",
	})

	SnapshotsAbsorbed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ladder_snapshots_absorbed_total",
		Help: "Book snapshots folded into the baseline while the window was open",
	})

	SnapshotsUnchanged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ladder_snapshots_unchanged_total",
		Help: "Book snapshots identical to the baseline",
	})

	HighlightDecays = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ladder_highlight_decays_total",
		Help: "Throttle windows closed",
	})

	TradesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ladder_trades_applied_total",
		Help: "Trade ticks applied to the ticker",
	})
)

// Init registers every collector on a fresh registry.
func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		MessagesReceived, MessagesDiscarded, FeedReconnects, FeedConnected,
		SnapshotsPublished, SnapshotsAbsorbed, SnapshotsUnchanged,
		HighlightDecays, TradesApplied,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			logger.Warn().Err(err).Msg("metrics: register collector")
		}
	}
	logger.Info().Msg("metrics: prometheus collectors initialized")
	return reg
}

// Handler exposes reg in the prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
