package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connected_sessions",
		Help: "Number of currently connected sessions",
	})

	RegisteredNicknames = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_registered_nicknames",
		Help: "Number of nicknames currently bound in the registry",
	})

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total hub events processed by type",
	}, []string{"type"})

	EventProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_event_processing_seconds",
		Help:    "Time to process each hub event type",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	DroppedLines = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_dropped_lines_total",
		Help: "Outbound lines evicted from full session queues",
	})
)

func init() {
	prometheus.MustRegister(ConnectedSessions)
	prometheus.MustRegister(RegisteredNicknames)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(DroppedLines)
}
