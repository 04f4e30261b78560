package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Engagement and feed collectors. Label values are fixed small sets so
// cardinality stays bounded.
var (
	// LikeToggles counts committed like mutations by action ("like", "unlike",
	// "noop" for a set-like already in the requested state).
	LikeToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_like_toggles_total",
			Help: "Committed like mutations by action.",
		},
		[]string{"action"},
	)

	// Boosts counts boost attempts by outcome ("ok", "cooldown", "not_found", "error").
	Boosts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_boosts_total",
			Help: "Boost attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// TxRetries counts transaction re-attempts after a transient failure.
	TxRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_tx_retries_total",
			Help: "Engagement transaction retries after transient storage conflicts.",
		},
		[]string{"op"},
	)

	// Notifications counts notification emissions by outcome ("sent",
	// "skipped_self", "skipped_synthetic", "failed", "breaker_open").
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_notifications_total",
			Help: "Owner notifications by outcome.",
		},
		[]string{"outcome"},
	)

	// FeedPageItems observes the number of items served per feed page.
	FeedPageItems = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_page_items",
			Help:    "Items returned per feed page.",
			Buckets: []float64{0, 1, 6, 12, 24, 50, 100},
		},
		[]string{"sort"},
	)
)

func init() {
	prometheus.MustRegister(LikeToggles, Boosts, TxRetries, Notifications, FeedPageItems)
}
