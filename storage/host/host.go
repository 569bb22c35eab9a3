// Package host implements a storage backend that reads through the
// untrusted host over the Runtime Host Protocol.
package host

import (
	"context"
	"fmt"

	"github.com/encointer/personhood-oracle/runtime/host/protocol"
	"github.com/encointer/personhood-oracle/storage/api"
)

var _ api.Backend = (*hostBackend)(nil)

type hostBackend struct {
	conn protocol.Connection
}

// Implements api.Backend.
func (b *hostBackend) Read(ctx context.Context, request *api.ReadRequest) (*api.ReadResponse, error) {
	if len(request.Keys) > api.MaxReadKeys {
		return nil, api.ErrTooManyKeys
	}

	rsp, err := b.conn.Call(ctx, &protocol.Body{
		HostStorageSyncRequest: &protocol.HostStorageSyncRequest{ReadRequest: *request},
	})
	if err != nil {
		return nil, fmt.Errorf("storage/host: read failed: %w", err)
	}
	if rsp.HostStorageSyncResponse == nil {
		return nil, fmt.Errorf("%w: unexpected response type %s", api.ErrMalformedResponse, rsp.Type())
	}

	// Proof verification is left to the caller, only the shape is checked.
	entries := rsp.HostStorageSyncResponse.Entries
	if len(entries) != len(request.Keys) {
		return nil, fmt.Errorf("%w: %d entries for %d keys", api.ErrMalformedResponse, len(entries), len(request.Keys))
	}
	return &rsp.HostStorageSyncResponse.ReadResponse, nil
}

// New creates a new storage backend that reads through the host.
func New(conn protocol.Connection) api.Backend {
	return &hostBackend{conn: conn}
}
