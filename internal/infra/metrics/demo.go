package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		demoGrantsTotal,
		demoRemindersTotal,
		promoRedemptionsTotal,
	)
}

var (
	demoGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_grants_total",
			Help: "Demo access requests by outcome.",
		},
		[]string{"result"}, // 'granted', 'duplicate', 'not_allowed'
	)

	demoRemindersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_reminders_total",
			Help: "Demo expiry reminders by delivery status.",
		},
		[]string{"status"},
	)

	promoRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_redemptions_total",
			Help: "Promo code applications by outcome.",
		},
		[]string{"result"}, // 'applied', 'exhausted', 'not_found'
	)
)

func IncDemoGrant(result string) {
	demoGrantsTotal.WithLabelValues(norm(result)).Inc()
}

func IncDemoReminder(status string) {
	demoRemindersTotal.WithLabelValues(norm(status)).Inc()
}

func IncPromoRedemption(result string) {
	promoRedemptionsTotal.WithLabelValues(norm(result)).Inc()
}
