package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(broadcastMessagesTotal) }

var broadcastMessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "broadcast_messages_total",
		Help: "Broadcast messages by delivery status.",
	},
	[]string{"status"}, // 'sent', 'failed'
)

func IncBroadcastMessage(status string) {
	broadcastMessagesTotal.WithLabelValues(norm(status)).Inc()
}
