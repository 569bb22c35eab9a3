// Package metrics runs the node's prometheus endpoint.
package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/encointer/personhood-oracle/common/service"
	"github.com/encointer/personhood-oracle/common/version"
	"github.com/encointer/personhood-oracle/config"
	metricsConfig "github.com/encointer/personhood-oracle/oracle-node/cmd/common/metrics/config"
)

// MetricUp is the name of the gauge reporting that the node is up.
const MetricUp = "personhood_oracle_up"

// Enabled returns true iff the node exports metrics. Collectors check it
// before registering, so that nothing accumulates when disabled.
func Enabled() bool {
	return config.GlobalConfig.Metrics.Mode != metricsConfig.ModeNone
}

type pullService struct {
	service.BaseBackgroundService

	ln  net.Listener
	srv *http.Server
}

func (s *pullService) Start() error {
	go func() {
		defer s.BaseBackgroundService.Stop()

		err := s.srv.Serve(s.ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("metrics server terminated",
				"err", err,
			)
		}
	}()

	s.Logger.Info("metrics server started",
		"address", s.ln.Addr().String(),
	)
	return nil
}

func (s *pullService) Stop() {
	_ = s.srv.Close()
}

func newPullService(cfg *metricsConfig.Config) (service.BackgroundService, error) {
	up := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        MetricUp,
		Help:        "Is the personhood oracle node up.",
		ConstLabels: prometheus.Labels{"software_version": version.SoftwareVersion},
	})
	if err := prometheus.WrapRegistererWith(cfg.Labels, prometheus.DefaultRegisterer).Register(up); err != nil {
		return nil, fmt.Errorf("metrics: failed to register up gauge: %w", err)
	}
	up.Set(1)

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("metrics: failed to listen on '%s': %w", cfg.Address, err)
	}

	return &pullService{
		BaseBackgroundService: *service.NewBaseBackgroundService("metrics"),
		ln:                    ln,
		srv: &http.Server{
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// New creates the metrics service selected by the configuration. With
// metrics disabled it is an inert placeholder.
func New() (service.BackgroundService, error) {
	cfg := &config.GlobalConfig.Metrics
	switch cfg.Mode {
	case metricsConfig.ModeNone:
		return service.NewBaseBackgroundService("metrics"), nil
	case metricsConfig.ModePull:
		return newPullService(cfg)
	default:
		return nil, fmt.Errorf("metrics: unsupported mode: '%s'", cfg.Mode)
	}
}
