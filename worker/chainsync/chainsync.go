// Package chainsync implements the chain sync worker, which follows the
// local chain store and feeds every new light block to the enclave in
// height order.
package chainsync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	cmnBackoff "github.com/encointer/personhood-oracle/common/backoff"
	"github.com/encointer/personhood-oracle/common/errors"
	"github.com/encointer/personhood-oracle/common/service"
	consensus "github.com/encointer/personhood-oracle/consensus/api"
	"github.com/encointer/personhood-oracle/light"
	"github.com/encointer/personhood-oracle/runtime/host/protocol"
	"github.com/encointer/personhood-oracle/worker/chainsync/config"
)

var _ service.BackgroundService = (*Worker)(nil)

// Syncer is the enclave side of the sync.
type Syncer interface {
	// ConsensusSync pushes a light block to the enclave's light client.
	ConsensusSync(ctx context.Context, blk *consensus.LightBlock) (*protocol.RuntimeConsensusSyncResponse, error)
}

// Worker is the chain sync worker.
type Worker struct {
	service.BaseBackgroundService

	cfg      *config.Config
	provider consensus.LightProvider
	syncer   Syncer

	synced  atomic.Uint64
	started atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	quitCh chan struct{}
}

// SyncedHeight returns the height of the latest block the enclave accepted.
func (w *Worker) SyncedHeight() uint64 {
	return w.synced.Load()
}

// syncAvailable pushes every block above the synced height up to the latest
// available one.
func (w *Worker) syncAvailable(ctx context.Context) error {
	latest, err := w.provider.LatestHeight(ctx)
	switch {
	case errors.Is(err, consensus.ErrVersionNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("chainsync: failed to query latest height: %w", err)
	}

	for height := w.synced.Load() + 1; height <= latest; height++ {
		blk, err := w.provider.LightBlock(ctx, height)
		if err != nil {
			return fmt.Errorf("chainsync: failed to fetch light block %d: %w", height, err)
		}

		rsp, err := w.syncer.ConsensusSync(ctx, blk)
		switch {
		case errors.Is(err, light.ErrStaleHeader):
			// The enclave is already past this height.
			w.synced.Store(height)
			continue
		case err != nil:
			return fmt.Errorf("chainsync: enclave rejected light block %d: %w", height, err)
		}

		w.synced.Store(rsp.Height)
		w.Logger.Debug("synced light block",
			"height", rsp.Height,
			"hash", rsp.HeaderHash,
		)
	}
	return nil
}

func (w *Worker) worker() {
	defer close(w.quitCh)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		off := backoff.WithContext(cmnBackoff.NewExponentialBackOff(w.cfg.MaxBackoff), w.ctx)
		err := backoff.RetryNotify(
			func() error { return w.syncAvailable(w.ctx) },
			off,
			func(err error, next time.Duration) {
				w.Logger.Warn("chain sync failed, retrying",
					"err", err,
					"retry_in", next,
					"synced_height", w.synced.Load(),
				)
			},
		)
		if err != nil {
			// Only a canceled context stops the retries.
			return
		}

		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Start starts the worker.
func (w *Worker) Start() error {
	w.Logger.Info("starting chain sync",
		"synced_height", w.synced.Load(),
		"poll_interval", w.cfg.PollInterval,
	)
	w.started.Store(true)
	go w.worker()
	return nil
}

// Stop halts the worker.
func (w *Worker) Stop() {
	w.cancel()
}

// Cleanup waits for a started worker to terminate.
func (w *Worker) Cleanup() {
	if w.started.Load() {
		<-w.quitCh
	}
}

// Quit returns a channel that will be closed when the worker terminates.
func (w *Worker) Quit() <-chan struct{} {
	return w.quitCh
}

// New creates a new chain sync worker that starts syncing above the given
// height.
func New(cfg *config.Config, provider consensus.LightProvider, syncer Syncer, syncedHeight uint64) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		BaseBackgroundService: *service.NewBaseBackgroundService("worker/chainsync"),
		cfg:                   cfg,
		provider:              provider,
		syncer:                syncer,
		ctx:                   ctx,
		cancel:                cancel,
		quitCh:                make(chan struct{}),
	}
	w.synced.Store(syncedHeight)
	return w
}
