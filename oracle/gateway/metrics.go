package gateway

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personhood_oracle_gateway_requests",
			Help: "Number of gateway requests by method and status.",
		},
		[]string{"method", "status"},
	)
	gatewayLatency = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "personhood_oracle_gateway_latency",
			Help: "Gateway request latency (seconds).",
		},
		[]string{"method"},
	)
	gatewayPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "personhood_oracle_gateway_panics",
			Help: "Number of recovered gateway handler panics.",
		},
	)

	gatewayCollectors = []prometheus.Collector{
		gatewayRequests,
		gatewayLatency,
		gatewayPanics,
	}

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(gatewayCollectors...)
	})
}
