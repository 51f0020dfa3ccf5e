package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsExpiredTotal,
		expirySweepFailures,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions transitioned to expired by the sweep.",
		},
	)

	expirySweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_sweep_failures_total",
			Help: "Expiry sweeps that finished with one or more failed updates.",
		},
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncExpirySweepFailures() {
	expirySweepFailures.Inc()
}
