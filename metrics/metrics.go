package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmhub_messages_sent_total",
			Help: "Messages persisted, by initial delivery status",
		},
		[]string{"status"}, // "sent" or "delivered"
	)

	SendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmhub_send_errors_total",
			Help: "Rejected or failed sends",
		},
		[]string{"reason"}, // "invalid", "persistence"
	)

	BroadcastFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmhub_broadcast_failures_total",
			Help: "Fan-out attempts dropped on closing connections",
		},
	)

	MessagesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmhub_messages_read_total",
			Help: "Messages transitioned to read by batch mark-read",
		},
	)

	BridgeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmhub_bridge_errors_total",
			Help: "Kafka event bridge publish failures",
		},
	)

	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dmhub_live_sessions",
			Help: "Currently open websocket sessions",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dmhub_online_users",
			Help: "Users with at least one live session",
		},
	)
)
