// Package direct implements the direct invocation worker: a JSON-RPC 2.0
// server over HTTP and websocket forwarding requests to the enclave.
package direct

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/encointer/personhood-oracle/common/service"
	"github.com/encointer/personhood-oracle/oracle/api"
	"github.com/encointer/personhood-oracle/worker/direct/config"
)

const (
	// JSONRPCVersion is the only supported JSON-RPC version.
	JSONRPCVersion = "2.0"

	// PathHTTP is the path serving JSON-RPC over HTTP POST.
	PathHTTP = "/"
	// PathWebSocket is the path serving JSON-RPC over websocket.
	PathWebSocket = "/ws"

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeInternalError  = -32603

	wsWriteTimeout = 10 * time.Second
	shutdownGrace  = 5 * time.Second
)

var _ service.BackgroundService = (*Worker)(nil)

// Caller forwards oracle requests to the enclave.
type Caller interface {
	// Call forwards the request and returns the enclave's return value.
	Call(ctx context.Context, rq *api.RpcRequest) (*api.RpcReturnValue, error)
}

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  []string        `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// Response is a JSON-RPC 2.0 response. The result is the hex encoded
// return value envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  string          `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Worker is the direct invocation worker.
type Worker struct {
	service.BaseBackgroundService

	cfg    *config.Config
	caller Caller

	upgrader websocket.Upgrader
	router   *mux.Router

	ln  net.Listener
	srv *http.Server
}

// Handler returns the HTTP handler serving the JSON-RPC endpoints.
func (w *Worker) Handler() http.Handler {
	return w.router
}

// Addr returns the listen address once the worker has been started.
func (w *Worker) Addr() net.Addr {
	if w.ln == nil {
		return nil
	}
	return w.ln.Addr()
}

func (w *Worker) dispatch(ctx context.Context, data []byte) *Response {
	var rq Request
	if err := json.Unmarshal(data, &rq); err != nil {
		return &Response{
			JSONRPC: JSONRPCVersion,
			Error:   &Error{Code: codeParseError, Message: "parse error"},
			ID:      json.RawMessage("null"),
		}
	}
	if rq.ID == nil {
		rq.ID = json.RawMessage("null")
	}
	if rq.JSONRPC != JSONRPCVersion || rq.Method == "" {
		return &Response{
			JSONRPC: JSONRPCVersion,
			Error:   &Error{Code: codeInvalidRequest, Message: "invalid request"},
			ID:      rq.ID,
		}
	}

	rv, err := w.caller.Call(ctx, &api.RpcRequest{Method: rq.Method, Params: rq.Params})
	if err != nil {
		w.Logger.Error("failed to forward request to enclave",
			"err", err,
			"method", rq.Method,
		)
		return &Response{
			JSONRPC: JSONRPCVersion,
			Error:   &Error{Code: codeInternalError, Message: "enclave unavailable"},
			ID:      rq.ID,
		}
	}

	w.Logger.Debug("request served",
		"method", rq.Method,
		"status", rv.Status,
	)
	return &Response{
		JSONRPC: JSONRPCVersion,
		Result:  rv.Hex(),
		ID:      rq.ID,
	}
}

func (w *Worker) handleHTTP(rw http.ResponseWriter, req *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(rw, req.Body, w.cfg.MaxRequestSize))
	if err != nil {
		http.Error(rw, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	rsp := w.dispatch(req.Context(), data)

	rw.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(rw).Encode(rsp); err != nil {
		w.Logger.Warn("failed to write response",
			"err", err,
		)
	}
}

func (w *Worker) handleWebSocket(rw http.ResponseWriter, req *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		w.Logger.Warn("failed to upgrade websocket connection",
			"err", err,
		)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(w.cfg.MaxRequestSize)

	w.Logger.Debug("websocket client connected",
		"remote_addr", req.RemoteAddr,
	)

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.Logger.Debug("websocket read failed",
					"err", err,
				)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		rsp, err := json.Marshal(w.dispatch(ctx, data))
		if err != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err = conn.WriteMessage(websocket.TextMessage, rsp); err != nil {
			w.Logger.Debug("websocket write failed",
				"err", err,
			)
			return
		}
	}
}

// Start starts the worker.
func (w *Worker) Start() error {
	if !w.cfg.Enabled {
		w.Logger.Info("direct rpc disabled")
		return nil
	}

	ln, err := net.Listen("tcp", w.cfg.Address)
	if err != nil {
		return fmt.Errorf("direct: failed to listen on '%s': %w", w.cfg.Address, err)
	}
	w.ln = ln
	w.srv = &http.Server{
		Handler:           w.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := w.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			w.Logger.Error("direct rpc server terminated",
				"err", err,
			)
		}
		w.BaseBackgroundService.Stop()
	}()

	w.Logger.Info("direct rpc started",
		"address", ln.Addr().String(),
		"websocket", w.cfg.WebSocket,
	)
	return nil
}

// Stop halts the worker.
func (w *Worker) Stop() {
	if w.srv == nil {
		w.BaseBackgroundService.Stop()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := w.srv.Shutdown(ctx); err != nil {
		_ = w.srv.Close()
	}
}

// New creates a new direct invocation worker.
func New(cfg *config.Config, caller Caller) *Worker {
	w := &Worker{
		BaseBackgroundService: *service.NewBaseBackgroundService("worker/direct"),
		cfg:                   cfg,
		caller:                caller,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		router: mux.NewRouter(),
	}

	w.router.HandleFunc(PathHTTP, w.handleHTTP).Methods(http.MethodPost)
	if cfg.WebSocket {
		w.router.HandleFunc(PathWebSocket, w.handleWebSocket).Methods(http.MethodGet)
	}

	return w
}
