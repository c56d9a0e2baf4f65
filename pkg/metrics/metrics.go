// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ConversationsCreated tracks conversations created by the directory.
	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_created_total",
			Help: "Total conversations created",
		},
	)

	// MessagesSent tracks messages appended to conversation logs.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total messages sent",
		},
	)

	// ReactionsToggled tracks reaction, like and bookmark toggles.
	ReactionsToggled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactions_toggled_total",
			Help: "Total toggles by resulting action",
		},
		[]string{"action"},
	)

	// NotificationsCreated tracks emitted notifications.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total notifications created",
		},
		[]string{"type"},
	)

	// LiveSubscriptionsActive tracks open live queries.
	LiveSubscriptionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "live_subscriptions_active",
			Help: "Number of active live subscriptions",
		},
		[]string{"kind"},
	)

	// PushDeliveries tracks push messages by outcome.
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Total push deliveries",
		},
		[]string{"status"},
	)

	// EventsPublished tracks domain events published to NATS.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total domain events published",
		},
		[]string{"type", "status"},
	)

	// StreamConnections tracks open SSE and WebSocket clients.
	StreamConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_connections_active",
			Help: "Number of active streaming connections",
		},
		[]string{"transport"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementSubscriptions increments the active subscription count of kind.
func IncrementSubscriptions(kind string) {
	LiveSubscriptionsActive.WithLabelValues(kind).Inc()
}

// DecrementSubscriptions decrements the active subscription count of kind.
func DecrementSubscriptions(kind string) {
	LiveSubscriptionsActive.WithLabelValues(kind).Dec()
}

// IncrementStreams increments the open stream count of transport.
func IncrementStreams(transport string) {
	StreamConnections.WithLabelValues(transport).Inc()
}

// DecrementStreams decrements the open stream count of transport.
func DecrementStreams(transport string) {
	StreamConnections.WithLabelValues(transport).Dec()
}
