// Package host implements the untrusted side of the oracle: it serves
// enclave storage reads from the local chain store and forwards requests
// and headers to the enclave over the Runtime Host Protocol.
package host

import (
	"context"
	"fmt"
	"net"

	"github.com/encointer/personhood-oracle/common/logging"
	consensus "github.com/encointer/personhood-oracle/consensus/api"
	"github.com/encointer/personhood-oracle/runtime/host/protocol"
	storage "github.com/encointer/personhood-oracle/storage/api"
)

var _ protocol.Handler = (*handler)(nil)

// ChainStore is the local, untrusted chain store the host serves from.
type ChainStore interface {
	storage.Backend
	consensus.LightProvider
}

type handler struct {
	logger *logging.Logger
	store  ChainStore
}

// Implements protocol.Handler.
func (h *handler) Handle(ctx context.Context, body *protocol.Body) (*protocol.Body, error) {
	switch {
	case body.HostStorageSyncRequest != nil:
		rq := &body.HostStorageSyncRequest.ReadRequest
		rsp, err := h.store.Read(ctx, rq)
		if err != nil {
			h.logger.Debug("storage read failed",
				"err", err,
				"height", rq.Height,
				"keys", len(rq.Keys),
			)
			return nil, err
		}
		return &protocol.Body{HostStorageSyncResponse: &protocol.HostStorageSyncResponse{
			ReadResponse: *rsp,
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnsupportedRequest, body.Type())
	}
}

// Host is a connection to the enclave.
type Host struct {
	logger *logging.Logger

	store ChainStore
	conn  protocol.Connection
}

// Store returns the local chain store.
func (h *Host) Store() ChainStore {
	return h.store
}

// Start initializes the connection to the enclave and returns the
// information the enclave reported about itself.
func (h *Host) Start(ctx context.Context, conn net.Conn, hi *protocol.HostInfo) (*protocol.RuntimeInfoResponse, error) {
	info, err := h.conn.InitHost(ctx, conn, hi)
	if err != nil {
		return nil, fmt.Errorf("host: failed to initialize enclave connection: %w", err)
	}

	h.logger.Info("enclave ready",
		"software_version", info.SoftwareVersion,
		"latest_height", info.LatestHeight,
		"methods", info.Methods,
	)
	return info, nil
}

// Stop closes the connection to the enclave.
func (h *Host) Stop() {
	h.conn.Close()
}

// GetInfo returns the information the enclave reported during initialization.
func (h *Host) GetInfo() (*protocol.RuntimeInfoResponse, error) {
	return h.conn.GetInfo()
}

// New creates a new host serving from the given chain store.
func New(store ChainStore) (*Host, error) {
	logger := logging.GetLogger("runtime/host")

	conn, err := protocol.NewConnection(logging.GetLogger("rhp/host"), &handler{
		logger: logger,
		store:  store,
	})
	if err != nil {
		return nil, err
	}

	return &Host{
		logger: logger,
		store:  store,
		conn:   conn,
	}, nil
}
