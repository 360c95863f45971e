package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		authInitDataTotal,
		usersUpsertedTotal,
		rateLimitTriggeredTotal,
	)
}

var (
	authInitDataTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_initdata_total",
			Help: "WebApp initData verification verdicts.",
		},
		[]string{"result"}, // 'ok', 'bad_hash', 'expired', 'malformed', 'bypass', 'session'
	)

	usersUpsertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "users_upserted_total",
			Help: "Profile refreshes performed by the identity resolver.",
		},
	)

	rateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_triggered_total",
			Help: "Total number of requests rejected by the per-user rate limiter.",
		},
	)
)

func IncAuthInitData(result string) {
	authInitDataTotal.WithLabelValues(norm(result)).Inc()
}

func IncUsersUpserted() { usersUpsertedTotal.Inc() }

func IncRateLimitTriggered() { rateLimitTriggeredTotal.Inc() }
