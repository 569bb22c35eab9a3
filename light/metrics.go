package light

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	lightHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "personhood_oracle_light_height",
			Help: "Height of the latest trusted header.",
		},
	)
	lightRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "personhood_oracle_light_rejected_headers",
			Help: "Number of headers rejected by the light client.",
		},
	)

	lightCollectors = []prometheus.Collector{
		lightHeight,
		lightRejected,
	}

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(lightCollectors...)
	})
}
