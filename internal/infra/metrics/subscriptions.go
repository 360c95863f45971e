package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsExpiredTotal,
		subscriptionsGrantedTotal,
		subscriptionsRevokedTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions relabelled by the expiry sweep.",
		},
	)

	subscriptionsGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_granted_total",
			Help: "Subscriptions created, labeled by source.",
		},
		[]string{"source"}, // 'payment', 'admin'
	)

	subscriptionsRevokedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_revoked_total",
			Help: "Subscriptions revoked by administrators.",
		},
	)
)

func IncSubscriptionsExpired(count int64) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncSubscriptionGranted(source string) {
	subscriptionsGrantedTotal.WithLabelValues(norm(source)).Inc()
}

func IncSubscriptionRevoked() { subscriptionsRevokedTotal.Inc() }
