// Package badger contains the glue between BadgerDB and the node: logging
// and periodic value log garbage collection.
package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/encointer/personhood-oracle/common/logging"
)

const (
	// DefaultGCInterval is the value log GC interval used when none is given.
	DefaultGCInterval = 5 * time.Minute

	gcDiscardRatio = 0.5
)

type logAdapter struct {
	*logging.Logger
}

func (l logAdapter) Errorf(format string, a ...interface{}) {
	l.Error(trimf(format, a...))
}

func (l logAdapter) Warningf(format string, a ...interface{}) {
	l.Warn(trimf(format, a...))
}

func (l logAdapter) Infof(format string, a ...interface{}) {
	l.Info(trimf(format, a...))
}

func (l logAdapter) Debugf(format string, a ...interface{}) {
	l.Debug(trimf(format, a...))
}

// Badger terminates most of its messages with a newline.
func trimf(format string, a ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, a...))
}

// NewLogAdapter returns a badger.Logger writing to the given logger.
func NewLogAdapter(logger *logging.Logger) badger.Logger {
	return logAdapter{logger}
}

// GCWorker periodically garbage collects a database's value log.
type GCWorker struct {
	cancel context.CancelFunc
	doneCh chan struct{}
}

// Close stops the worker and waits for an in-progress collection to finish.
func (gc *GCWorker) Close() {
	gc.cancel()
	<-gc.doneCh
}

// collectValueLog rewrites value log files until badger reports there is
// nothing left worth rewriting.
func collectValueLog(db *badger.DB) error {
	for {
		err := db.RunValueLogGC(gcDiscardRatio)
		switch {
		case err == nil:
		case errors.Is(err, badger.ErrNoRewrite),
			errors.Is(err, badger.ErrRejected),
			errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		default:
			return err
		}
	}
}

// NewGCWorker starts a value log GC worker for db. A non-positive interval
// selects DefaultGCInterval.
func NewGCWorker(logger *logging.Logger, db *badger.DB, interval time.Duration) *GCWorker {
	if interval <= 0 {
		interval = DefaultGCInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	gc := &GCWorker{
		cancel: cancel,
		doneCh: make(chan struct{}),
	}

	go func() {
		defer close(gc.doneCh)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := collectValueLog(db); err != nil {
				logger.Error("failed to GC value log",
					"err", err,
				)
			}
		}
	}()

	return gc
}
