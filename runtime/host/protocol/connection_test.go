package protocol

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/errors"
	"github.com/encointer/personhood-oracle/common/logging"
	"github.com/encointer/personhood-oracle/common/version"
)

var errTestHandler = errors.New("rhp/test", 1, "rhp/test: handler failure")

type testHandler struct {
	calls   atomic.Int32
	version version.Version
}

// Implements Handler.
func (h *testHandler) Handle(ctx context.Context, body *Body) (*Body, error) {
	// RuntimeInfoRequest must be answered for host initialization to complete.
	if body.RuntimeInfoRequest != nil {
		return &Body{
			RuntimeInfoResponse: &RuntimeInfoResponse{
				ProtocolVersion: h.version,
				SoftwareVersion: "test",
			},
		}, nil
	}

	h.calls.Add(1)
	if body.RuntimePingRequest != nil {
		return nil, errTestHandler
	}
	return body, nil
}

func newTestHandler() *testHandler {
	return &testHandler{version: version.RuntimeHostProtocol}
}

func newTestPair(t *testing.T, guest, host *testHandler) (Connection, Connection) {
	require := require.New(t)
	logger := logging.GetLogger("rhp/test")

	connA, connB := net.Pipe()
	protoA, err := NewConnection(logger, guest)
	require.NoError(err, "A.New()")
	protoB, err := NewConnection(logger, host)
	require.NoError(err, "B.New()")

	err = protoA.InitGuest(connA)
	require.NoError(err, "A.InitGuest()")
	_, err = protoB.InitHost(context.Background(), connB, &HostInfo{StorageBackend: "direct"})
	require.NoError(err, "B.InitHost()")

	t.Cleanup(func() {
		protoA.Close()
		protoB.Close()
	})
	return protoA, protoB
}

func TestClose(t *testing.T) {
	require := require.New(t)

	proto, err := NewConnection(logging.GetLogger("rhp/test"), newTestHandler())
	require.NoError(err, "NewConnection")
	require.NotPanics(func() { proto.Close() })

	_, err = proto.Call(context.Background(), &Body{Empty: &Empty{}})
	require.ErrorIs(err, ErrNotReady, "Call on an uninitialized connection")
}

func TestEchoRequestResponse(t *testing.T) {
	require := require.New(t)

	handlerA, handlerB := newTestHandler(), newTestHandler()
	protoA, protoB := newTestPair(t, handlerA, handlerB)

	require.Panics(func() { _ = protoA.InitGuest(nil) }, "connection reinit should panic")
	require.Panics(func() { _, _ = protoB.InitHost(context.Background(), nil, &HostInfo{}) }, "connection reinit should panic")

	reqA := Body{Empty: &Empty{}}
	respA, err := protoA.Call(context.Background(), &reqA)
	require.NoError(err, "A.Call()")
	require.EqualValues(&reqA, respA, "A.Call()")
	require.EqualValues(0, handlerA.calls.Load(), "Handler A must not be called")
	require.EqualValues(1, handlerB.calls.Load(), "Handler B must be called")

	reqB := Body{RuntimeCurrentCycleRequest: &Empty{}}
	respB, err := protoB.Call(context.Background(), &reqB)
	require.NoError(err, "B.Call()")
	require.EqualValues(&reqB, respB, "B.Call()")
	require.Equal("RuntimeCurrentCycleRequest", respB.Type())
	require.EqualValues(1, handlerA.calls.Load(), "Handler A must be called")
	require.EqualValues(1, handlerB.calls.Load(), "Handler B must not be called")

	_, err = protoA.GetInfo()
	require.ErrorIs(err, ErrNotReady, "GetInfo should fail for guest connections")
	info, err := protoB.GetInfo()
	require.NoError(err, "GetInfo should succeed for host connections")
	require.EqualValues(version.RuntimeHostProtocol, info.ProtocolVersion)
	require.Equal("test", info.SoftwareVersion)

	protoA.Close()
	_, err = protoA.Call(context.Background(), &reqA)
	require.Error(err, "A.Call() must error when connection is closed")

	protoB.Close()
	_, err = protoB.Call(context.Background(), &reqB)
	require.Error(err, "B.Call() must error when connection is closed")
}

func TestErrorPropagation(t *testing.T) {
	require := require.New(t)

	_, protoB := newTestPair(t, newTestHandler(), newTestHandler())

	_, err := protoB.Call(context.Background(), &Body{RuntimePingRequest: &Empty{}})
	require.ErrorIs(err, errTestHandler, "coded errors must survive the connection")
}

func TestIncompatibleVersion(t *testing.T) {
	require := require.New(t)
	logger := logging.GetLogger("rhp/test")

	guest := newTestHandler()
	guest.version = version.Version{Major: version.RuntimeHostProtocol.Major + 1}

	connA, connB := net.Pipe()
	protoA, err := NewConnection(logger, guest)
	require.NoError(err, "A.New()")
	protoB, err := NewConnection(logger, newTestHandler())
	require.NoError(err, "B.New()")
	defer protoA.Close()
	defer protoB.Close()

	require.NoError(protoA.InitGuest(connA), "A.InitGuest()")
	_, err = protoB.InitHost(context.Background(), connB, &HostInfo{})
	require.Error(err, "InitHost must reject an incompatible protocol version")
	require.Contains(err.Error(), "incompatible protocol version")
}

func TestBigMessage(t *testing.T) {
	require := require.New(t)

	handlerA, handlerB := newTestHandler(), newTestHandler()
	protoA, _ := newTestPair(t, handlerA, handlerB)

	rq := make([]byte, 2000000)
	rq[len(rq)-1] = 0x42
	reqA := Body{RuntimeRPCCallRequest: &RuntimeRPCCallRequest{Request: rq}}
	respA, err := protoA.Call(context.Background(), &reqA)
	require.NoError(err, "A.Call()")
	require.EqualValues(&reqA, respA, "A.Call()")
	require.EqualValues(0, handlerA.calls.Load(), "Handler A must not be called")
	require.EqualValues(1, handlerB.calls.Load(), "Handler B must be called")
}

type blockingHandler struct {
	*testHandler

	entered chan struct{}
}

func (h *blockingHandler) Handle(ctx context.Context, body *Body) (*Body, error) {
	if body.RuntimeCurrentCycleRequest == nil {
		return h.testHandler.Handle(ctx, body)
	}
	close(h.entered)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPeerClosedDuringCall(t *testing.T) {
	require := require.New(t)
	logger := logging.GetLogger("rhp/test")

	guest := &blockingHandler{testHandler: newTestHandler(), entered: make(chan struct{})}

	connA, connB := net.Pipe()
	protoA, err := NewConnection(logger, guest)
	require.NoError(err)
	protoB, err := NewConnection(logger, newTestHandler())
	require.NoError(err)
	defer protoB.Close()

	require.NoError(protoA.InitGuest(connA))
	_, err = protoB.InitHost(context.Background(), connB, &HostInfo{})
	require.NoError(err)

	errCh := make(chan error, 1)
	go func() {
		_, err := protoB.Call(context.Background(), &Body{RuntimeCurrentCycleRequest: &Empty{}})
		errCh <- err
	}()

	<-guest.entered
	protoA.Close()
	require.ErrorIs(<-errCh, ErrConnectionClosed, "outstanding calls fail once the peer is gone")
}
