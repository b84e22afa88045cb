package realtime

import "github.com/prometheus/client_golang/prometheus"

// Delivery outcomes recorded on deliveriesTotal.
const (
	outcomeDelivered = "delivered"
	outcomeQueueFull = "queue_full"
	outcomeRetryFail = "retries_exhausted"
	outcomeStale     = "stale"
)

var (
	messagesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_published_total",
			Help: "Messages handed to the delivery broker.",
		},
	)

	// deliveriesTotal counts per-session delivery attempts by final outcome.
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliveries_total",
			Help: "Per-session message deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_sessions_active",
			Help: "Connected realtime sessions.",
		},
	)

	subscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_subscriptions_active",
			Help: "Live session to conversation subscriptions.",
		},
	)
)

func init() {
	prometheus.MustRegister(messagesPublished, deliveriesTotal, sessionsActive, subscriptionsActive)
}
