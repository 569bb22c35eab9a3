package protocol

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/encointer/personhood-oracle/oracle-node/cmd/common/metrics"
)

const (
	callResultOK      = "ok"
	callResultError   = "error"
	callResultTimeout = "timeout"
)

var (
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "personhood_oracle_rhp_call_duration_seconds",
			Help:    "Duration of host protocol calls, by request type.",
			Buckets: []float64{.001, .005, .025, .1, .5, 1, 5, 15},
		},
		[]string{"call"},
	)
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personhood_oracle_rhp_calls_total",
			Help: "Number of host protocol calls, by request type and result.",
		},
		[]string{"call", "result"},
	)

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(callDuration, callsTotal)
	})
}

func observeCall(call string, start time.Time, err error) {
	if !metrics.Enabled() {
		return
	}

	result := callResultOK
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = callResultTimeout
	default:
		result = callResultError
	}

	callDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
	callsTotal.WithLabelValues(call, result).Inc()
}
