// Package background implements utilities for managing background
// services.
package background

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/encointer/personhood-oracle/common/logging"
	"github.com/encointer/personhood-oracle/common/service"
)

// ServiceManager manages a group of background services.
type ServiceManager struct {
	sync.Mutex

	services []service.BackgroundService
	termCh   chan service.BackgroundService
	termSvc  service.BackgroundService
	stopCh   chan struct{}
	stopOnce sync.Once
	stopped  bool

	logger *logging.Logger
}

// Register registers a background service.
func (m *ServiceManager) Register(srv service.BackgroundService) {
	m.Lock()
	defer m.Unlock()

	m.services = append(m.services, srv)
	if quit := srv.Quit(); quit != nil {
		go func() {
			<-quit
			select {
			case m.termCh <- srv:
			default:
			}
		}()
	}
}

// RegisterCleanupOnly registers a cleanup only background service.
func (m *ServiceManager) RegisterCleanupOnly(svc service.CleanupAble, name string) {
	m.Register(service.NewCleanupOnlyService(svc, name))
}

// Start starts all registered services in registration order.
func (m *ServiceManager) Start() error {
	m.Lock()
	defer m.Unlock()

	for _, svc := range m.services {
		if err := svc.Start(); err != nil {
			m.logger.Error("failed to start service",
				"err", err,
				"service", svc.Name(),
			)
			return err
		}
	}
	return nil
}

// Wait waits for interruption via Stop, a signal, or a service terminating
// on its own, and then stops all services.
func (m *ServiceManager) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var termSvc service.BackgroundService
	select {
	case termSvc = <-m.termCh:
		m.logger.Info("background task terminated, propagating",
			"service", termSvc.Name(),
		)
	case <-sigCh:
		m.logger.Info("user requested termination")
	case <-m.stopCh:
		m.logger.Info("termination requested")
	}

	m.stopAll(termSvc)
}

// StopAll stops all services immediately, without waiting.
func (m *ServiceManager) StopAll() {
	m.stopAll(nil)
}

func (m *ServiceManager) stopAll(termSvc service.BackgroundService) {
	m.Lock()
	defer m.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true

	m.termSvc = termSvc
	for i := len(m.services) - 1; i >= 0; i-- {
		if svc := m.services[i]; svc != m.termSvc {
			svc.Stop()
		}
	}
}

// Stop requests the manager to stop all services.
func (m *ServiceManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Cleanup cleans up after all registered services, in reverse order.
func (m *ServiceManager) Cleanup() {
	m.Lock()
	defer m.Unlock()

	m.logger.Debug("terminating, beginning cleanup")
	for i := len(m.services) - 1; i >= 0; i-- {
		m.services[i].Cleanup()
	}
	m.logger.Debug("finished cleanup")
}

// NewServiceManager creates a new service manager.
func NewServiceManager(logger *logging.Logger) *ServiceManager {
	return &ServiceManager{
		termCh: make(chan service.BackgroundService, 1),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}
