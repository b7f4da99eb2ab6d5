package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PushDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Total number of web push delivery attempts.",
		},
		[]string{"result"},
	)

	SubscriptionsPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_subscriptions_pruned_total",
			Help: "Subscriptions removed after failed deliveries.",
		},
	)

	PaymentsInitiatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "Total number of STK push initiations.",
		},
	)

	PaymentCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Gateway callbacks processed, by resulting status.",
		},
		[]string{"status"},
	)

	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		PushDeliveriesTotal,
		SubscriptionsPrunedTotal,
		PaymentsInitiatedTotal,
		PaymentCallbacksTotal,
		LoginsTotal,
	)
}
