package host

import (
	"context"
	"fmt"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/errors"
	consensus "github.com/encointer/personhood-oracle/consensus/api"
	"github.com/encointer/personhood-oracle/oracle/api"
	"github.com/encointer/personhood-oracle/runtime/host/protocol"
)

const moduleName = "runtime/host"

var (
	// ErrInvalidArgument is the error returned when any of the passed method arguments is invalid.
	ErrInvalidArgument = errors.New(moduleName, 1, "host: invalid argument")
	// ErrMalformedResponse is the error returned when the enclave replies with an unexpected body.
	ErrMalformedResponse = errors.New(moduleName, 2, "host: malformed enclave response")
)

// Call forwards an oracle request to the enclave and returns its return value.
//
// Errors are only returned for transport failures; request failures are
// reported inside the return value.
func (h *Host) Call(ctx context.Context, rq *api.RpcRequest) (*api.RpcReturnValue, error) {
	if rq == nil {
		return nil, ErrInvalidArgument
	}

	rsp, err := h.conn.Call(ctx, &protocol.Body{
		RuntimeRPCCallRequest: &protocol.RuntimeRPCCallRequest{
			Request: cbor.Marshal(rq),
		},
	})
	switch {
	case err != nil:
		return nil, err
	case rsp.RuntimeRPCCallResponse == nil:
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, rsp.Type())
	}

	var rv api.RpcReturnValue
	if err = cbor.Unmarshal(rsp.RuntimeRPCCallResponse.Response, &rv); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	return &rv, nil
}

// ConsensusSync pushes a light block to the enclave's light client.
func (h *Host) ConsensusSync(ctx context.Context, blk *consensus.LightBlock) (*protocol.RuntimeConsensusSyncResponse, error) {
	if blk == nil {
		return nil, ErrInvalidArgument
	}

	rsp, err := h.conn.Call(ctx, &protocol.Body{
		RuntimeConsensusSyncRequest: &protocol.RuntimeConsensusSyncRequest{
			LightBlock: *blk,
		},
	})
	switch {
	case err != nil:
		return nil, err
	case rsp.RuntimeConsensusSyncResponse == nil:
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, rsp.Type())
	}
	return rsp.RuntimeConsensusSyncResponse, nil
}

// CurrentCycle asks the enclave for the verified current ceremony index.
func (h *Host) CurrentCycle(ctx context.Context) (*protocol.RuntimeCurrentCycleResponse, error) {
	rsp, err := h.conn.Call(ctx, &protocol.Body{RuntimeCurrentCycleRequest: &protocol.Empty{}})
	switch {
	case err != nil:
		return nil, err
	case rsp.RuntimeCurrentCycleResponse == nil:
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, rsp.Type())
	}
	return rsp.RuntimeCurrentCycleResponse, nil
}

// Ping checks that the enclave is responsive.
func (h *Host) Ping(ctx context.Context) error {
	_, err := h.conn.Call(ctx, &protocol.Body{RuntimePingRequest: &protocol.Empty{}})
	return err
}
