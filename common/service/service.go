// Package service defines the lifecycle shared by the long running parts of
// the oracle node.
package service

import (
	"sync"

	"github.com/encointer/personhood-oracle/common/logging"
)

// CleanupAble is anything holding resources that must be released once it
// is no longer running.
type CleanupAble interface {
	// Cleanup releases resources. It is called after Stop.
	Cleanup()
}

// CleanupFunc adapts a plain function to CleanupAble.
type CleanupFunc func()

// Cleanup calls f.
func (f CleanupFunc) Cleanup() {
	f()
}

// BackgroundService is a component with a start/stop lifecycle managed by
// the node.
type BackgroundService interface {
	CleanupAble

	// Name returns the service name, also used as its logging module.
	Name() string

	// Start starts the service. It must not block.
	Start() error

	// Stop requests the service to halt.
	Stop()

	// Quit returns a channel closed once the service has terminated. A nil
	// channel means the service never terminates on its own.
	Quit() <-chan struct{}
}

// BaseBackgroundService implements the bookkeeping part of
// BackgroundService and is meant to be embedded.
type BaseBackgroundService struct {
	Logger *logging.Logger

	name     string
	quitCh   chan struct{}
	quitOnce *sync.Once
}

// Name returns the service name.
func (b *BaseBackgroundService) Name() string {
	return b.name
}

// Start is a no-op.
func (b *BaseBackgroundService) Start() error {
	return nil
}

// Stop marks the service as terminated. Calling it more than once is safe.
func (b *BaseBackgroundService) Stop() {
	b.quitOnce.Do(func() {
		close(b.quitCh)
	})
}

// Quit returns the termination channel.
func (b *BaseBackgroundService) Quit() <-chan struct{} {
	return b.quitCh
}

// Cleanup is a no-op.
func (b *BaseBackgroundService) Cleanup() {}

// NewBaseBackgroundService creates a new base service with a logger named
// after the service.
func NewBaseBackgroundService(name string) *BaseBackgroundService {
	return &BaseBackgroundService{
		Logger:   logging.GetLogger(name),
		name:     name,
		quitCh:   make(chan struct{}),
		quitOnce: new(sync.Once),
	}
}

type cleanupOnlyService struct {
	BaseBackgroundService

	res CleanupAble
}

func (s *cleanupOnlyService) Quit() <-chan struct{} {
	return nil
}

func (s *cleanupOnlyService) Cleanup() {
	s.res.Cleanup()
}

// NewCleanupOnlyService wraps a resource that only needs releasing, such as
// an open database, so that it can be managed next to proper services.
func NewCleanupOnlyService(res CleanupAble, name string) BackgroundService {
	return &cleanupOnlyService{
		BaseBackgroundService: *NewBaseBackgroundService(name),
		res:                   res,
	}
}
