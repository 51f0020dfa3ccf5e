package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		pixOrdersTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Gateway webhook events by type and dispatch result.",
		},
		[]string{"type", "result"},
	)

	pixOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_orders_total",
			Help: "Pix order creation attempts by result (created/rejected/failed).",
		},
		[]string{"result"},
	)
)

func IncWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(eventType, result).Inc()
}

func IncPixOrder(result string) {
	pixOrdersTotal.WithLabelValues(result).Inc()
}
