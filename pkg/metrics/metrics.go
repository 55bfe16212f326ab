package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	OnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_online_users",
			Help: "Users currently bound to a live connection",
		},
	)

	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Open websocket connections, joined or not",
		},
	)

	WebsocketEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_total",
			Help: "Inbound websocket events by name and outcome",
		},
		[]string{"event", "outcome"},
	)

	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Persisted notifications by type",
		},
		[]string{"type"},
	)

	PushDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Push gateway outcomes",
		},
		[]string{"result"},
	)

	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Chat messages persisted",
		},
	)
)

// Register adds every collector to reg. Call once per process.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		OnlineUsers,
		WebsocketConnections,
		WebsocketEvents,
		NotificationsCreated,
		PushDeliveries,
		MessagesSent,
	)
}
