package alerts

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "socrelay"

var (
	alertsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "ingested_total",
			Help:      "Total alerts accepted by the ingest endpoint",
		},
		[]string{"forwarded"},
	)

	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "deliveries_total",
			Help:      "Total per-recipient delivery attempts by outcome",
		},
		[]string{"status"},
	)

	deliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "delivery_duration_seconds",
			Help:      "Time to deliver one message to one recipient",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	registrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "recipients",
			Help:      "Number of registered recipients",
		},
	)
)

func recordIngest(forwarded bool) {
	label := "false"
	if forwarded {
		label = "true"
	}
	alertsIngested.WithLabelValues(label).Inc()
}

func recordDelivery(status string) {
	deliveriesTotal.WithLabelValues(status).Inc()
}

func recordDeliveryDuration(duration time.Duration) {
	deliveryDuration.Observe(duration.Seconds())
}

// RecordRegistrySize updates the registered-recipients gauge.
func RecordRegistrySize(n int) {
	registrySize.Set(float64(n))
}
