// Package protocol implements the Runtime Host Protocol, the framed CBOR
// request/response protocol spoken between the untrusted host and the
// enclave. Either side may issue requests once the host has completed the
// info handshake.
package protocol

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/errors"
	"github.com/encointer/personhood-oracle/common/logging"
	"github.com/encointer/personhood-oracle/common/version"
)

const (
	moduleName = "rhp/internal"

	writeTimeout = 5 * time.Second
	// readyTimeout bounds how long a request received during the handshake
	// waits for the connection to become ready.
	readyTimeout = 5 * time.Second
)

var (
	// ErrNotReady is the error returned when the connection has not
	// completed its handshake, or is closed.
	ErrNotReady = errors.New(moduleName, 1, "rhp: not ready")

	// ErrConnectionClosed is the error returned for requests outstanding
	// when the connection goes away.
	ErrConnectionClosed = errors.New(moduleName, 2, "rhp: connection closed")

	// ErrUnsupportedRequest is returned by handlers for request bodies they
	// do not serve.
	ErrUnsupportedRequest = errors.New(moduleName, 3, "rhp: unsupported request")
)

// Handler serves requests coming from the other side.
type Handler interface {
	Handle(ctx context.Context, body *Body) (*Body, error)
}

// Connection is one end of a Runtime Host Protocol connection.
type Connection interface {
	// Close closes the connection and waits for its goroutines to exit.
	Close()

	// GetInfo returns the information the enclave reported during the
	// handshake. Only host connections have it.
	GetInfo() (*RuntimeInfoResponse, error)

	// Call sends a request and waits for the response. Errors returned by
	// the remote handler are rebuilt as the same coded errors.
	Call(ctx context.Context, body *Body) (*Body, error)

	// InitHost starts the connection as the host side and performs the
	// info handshake. Initializing a connection twice panics.
	InitHost(ctx context.Context, conn net.Conn, hi *HostInfo) (*RuntimeInfoResponse, error)

	// InitGuest starts the connection as the enclave side. Initializing a
	// connection twice panics.
	InitGuest(conn net.Conn) error
}

// HostInfo is what the host tells the enclave during the handshake.
type HostInfo struct {
	// StorageBackend is the name of the storage backend the host serves.
	StorageBackend string
}

type state uint8

const (
	stateUninitialized state = iota
	stateInitializing
	stateReady
	stateClosed
)

var stateNames = [...]string{
	stateUninitialized: "uninitialized",
	stateInitializing:  "initializing",
	stateReady:         "ready",
	stateClosed:        "closed",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("[malformed: %d]", s)
}

var validTransitions = map[state][]state{
	stateUninitialized: {stateInitializing},
	stateInitializing:  {stateReady, stateClosed},
	stateReady:         {stateClosed},
}

type connection struct {
	logger  *logging.Logger
	handler Handler

	mu      sync.Mutex
	state   state
	conn    net.Conn
	codec   *cbor.MessageCodec
	info    *RuntimeInfoResponse
	pending map[uint64]chan *Body
	nextID  uint64

	// writeMu serializes a frame write together with its deadline.
	writeMu sync.Mutex

	readyCh  chan struct{}
	closedCh chan struct{}
	workers  sync.WaitGroup
}

func (c *connection) transitionLocked(next state) {
	for _, s := range validTransitions[c.state] {
		if s == next {
			c.state = next
			return
		}
	}
	panic(fmt.Sprintf("rhp: invalid state transition: %s -> %s", c.state, next))
}

func (c *connection) isReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateReady
}

// Implements Connection.
func (c *connection) Close() {
	c.mu.Lock()
	if c.state != stateInitializing && c.state != stateReady {
		c.mu.Unlock()
		return
	}
	c.transitionLocked(stateClosed)
	c.mu.Unlock()

	if err := c.conn.Close(); err != nil {
		c.logger.Error("error while closing connection",
			"err", err,
		)
	}
	c.workers.Wait()
}

// Implements Connection.
func (c *connection) GetInfo() (*RuntimeInfoResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.info == nil {
		return nil, ErrNotReady
	}
	return c.info, nil
}

// Implements Connection.
func (c *connection) Call(ctx context.Context, body *Body) (*Body, error) {
	if !c.isReady() {
		return nil, ErrNotReady
	}
	return c.call(ctx, body)
}

func (c *connection) call(ctx context.Context, body *Body) (rsp *Body, err error) {
	defer func(start time.Time) {
		observeCall(body.Type(), start, err)
	}(time.Now())

	respCh := make(chan *Body, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.pending[id] = respCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err = c.send(ctx, &Message{ID: id, MessageType: MessageRequest, Body: *body}); err != nil {
		return nil, fmt.Errorf("rhp: failed to send request: %w", err)
	}

	select {
	case rsp = <-respCh:
	case <-c.closedCh:
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if e := rsp.Error; e != nil {
		return nil, errors.FromCode(e.Module, e.Code, e.Message)
	}
	return rsp, nil
}

func (c *connection) send(ctx context.Context, msg *Message) error {
	select {
	case <-c.closedCh:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.codec.Write(msg)
}

func (c *connection) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	select {
	case <-c.readyCh:
		return nil
	case <-ctx.Done():
		return ErrNotReady
	}
}

func (c *connection) serveRequest(ctx context.Context, req *Message) {
	var rsp *Body
	err := c.waitReady(ctx)
	if err == nil {
		rsp, err = c.handler.Handle(ctx, &req.Body)
	}
	if err != nil {
		module, code := errors.Code(err)
		rsp = &Body{Error: &Error{
			Module:  module,
			Code:    code,
			Message: err.Error(),
		}}
	}

	if err = c.send(ctx, &Message{ID: req.ID, MessageType: MessageResponse, Body: *rsp}); err != nil {
		c.logger.Warn("failed to send response",
			"err", err,
			"id", req.ID,
		)
	}
}

func (c *connection) deliverResponse(rsp *Message) {
	c.mu.Lock()
	respCh, ok := c.pending[rsp.ID]
	delete(c.pending, rsp.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("dropping response to unknown request",
			"id", rsp.ID,
		)
		return
	}
	respCh <- &rsp.Body
}

// readLoop reads frames until the connection fails, serving each request
// in its own goroutine. Handlers still running when it returns see their
// context canceled.
func (c *connection) readLoop() {
	ctx, cancel := context.WithCancel(context.Background())

	var handlers sync.WaitGroup
	defer func() {
		cancel()
		_ = c.conn.Close()
		close(c.closedCh)
		handlers.Wait()
	}()

	for {
		msg := new(Message)
		if err := c.codec.Read(msg); err != nil {
			c.logger.Debug("read loop terminated",
				"err", err,
			)
			return
		}

		switch msg.MessageType {
		case MessageRequest:
			handlers.Add(1)
			go func() {
				defer handlers.Done()
				c.serveRequest(ctx, msg)
			}()
		case MessageResponse:
			c.deliverResponse(msg)
		default:
			c.logger.Warn("ignoring malformed message",
				"id", msg.ID,
				"message_type", msg.MessageType,
			)
		}
	}
}

func (c *connection) start(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateUninitialized {
		panic("rhp: connection already initialized")
	}
	c.transitionLocked(stateInitializing)

	c.conn = conn
	c.codec = cbor.NewMessageCodec(conn, moduleName)

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		c.readLoop()
	}()
}

func (c *connection) ready(info *RuntimeInfoResponse) {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return
	}
	c.transitionLocked(stateReady)
	c.info = info
	c.mu.Unlock()

	close(c.readyCh)
}

// Implements Connection.
func (c *connection) InitGuest(conn net.Conn) error {
	c.start(conn)
	c.ready(nil)
	return nil
}

// Implements Connection.
func (c *connection) InitHost(ctx context.Context, conn net.Conn, hi *HostInfo) (*RuntimeInfoResponse, error) {
	c.start(conn)

	rsp, err := c.call(ctx, &Body{RuntimeInfoRequest: &RuntimeInfoRequest{
		StorageBackend: hi.StorageBackend,
	}})
	if err != nil {
		return nil, fmt.Errorf("rhp: error while requesting enclave info: %w", err)
	}
	info := rsp.RuntimeInfoResponse
	if info == nil {
		return nil, fmt.Errorf("rhp: unexpected response to RuntimeInfoRequest: %s", rsp.Type())
	}

	if !info.ProtocolVersion.Compatible(version.RuntimeHostProtocol) {
		c.logger.Error("enclave speaks an incompatible protocol version",
			"version", info.ProtocolVersion,
			"expected_version", version.RuntimeHostProtocol,
		)
		return nil, fmt.Errorf("rhp: incompatible protocol version (expected: %s got: %s)",
			version.RuntimeHostProtocol,
			info.ProtocolVersion,
		)
	}

	c.logger.Info("runtime host protocol initialized",
		"software_version", info.SoftwareVersion,
		"latest_height", info.LatestHeight,
		"issuer_key", info.IssuerKey,
	)
	c.ready(info)

	return info, nil
}

// NewConnection creates a new uninitialized connection dispatching incoming
// requests to handler.
func NewConnection(logger *logging.Logger, handler Handler) (Connection, error) {
	initMetrics()

	return &connection{
		logger:   logger,
		handler:  handler,
		pending:  make(map[uint64]chan *Body),
		readyCh:  make(chan struct{}),
		closedCh: make(chan struct{}),
	}, nil
}
