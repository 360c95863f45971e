package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestDuration) }

var httpRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status code.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route", "status"},
)

func ObserveHTTPRequest(route string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}
