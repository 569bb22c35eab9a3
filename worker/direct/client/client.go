// Package client implements a JSON-RPC 2.0 client for the direct invocation
// worker, over websocket or HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	cmnBackoff "github.com/encointer/personhood-oracle/common/backoff"
	"github.com/encointer/personhood-oracle/common/logging"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
	"github.com/encointer/personhood-oracle/oracle/api"
	"github.com/encointer/personhood-oracle/worker/direct"
)

const (
	dialRetries     = 5
	dialMaxInterval = 2 * time.Second
)

// Client is a direct invocation client.
type Client struct {
	sync.Mutex

	logger *logging.Logger

	endpoint string
	ws       *websocket.Conn
	http     *http.Client

	nextID uint64
}

func (c *Client) call(ctx context.Context, rq *direct.Request) (*direct.Response, error) {
	if c.ws != nil {
		return c.callWebSocket(ctx, rq)
	}
	return c.callHTTP(ctx, rq)
}

func (c *Client) callWebSocket(ctx context.Context, rq *direct.Request) (*direct.Response, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
		_ = c.ws.SetReadDeadline(deadline)
		defer func() {
			_ = c.ws.SetWriteDeadline(time.Time{})
			_ = c.ws.SetReadDeadline(time.Time{})
		}()
	}

	if err := c.ws.WriteJSON(rq); err != nil {
		return nil, fmt.Errorf("client: failed to send request: %w", err)
	}
	var rsp direct.Response
	if err := c.ws.ReadJSON(&rsp); err != nil {
		return nil, fmt.Errorf("client: failed to read response: %w", err)
	}
	return &rsp, nil
}

func (c *Client) callHTTP(ctx context.Context, rq *direct.Request) (*direct.Response, error) {
	body, err := json.Marshal(rq)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client: unexpected http status: %s", resp.Status)
	}

	var rsp direct.Response
	if err = json.NewDecoder(resp.Body).Decode(&rsp); err != nil {
		return nil, fmt.Errorf("client: failed to read response: %w", err)
	}
	return &rsp, nil
}

// Call invokes a method and returns the decoded return value envelope.
func (c *Client) Call(ctx context.Context, method string, params []string) (*api.RpcReturnValue, error) {
	c.Lock()
	defer c.Unlock()

	c.nextID++
	id := c.nextID
	if params == nil {
		params = []string{}
	}
	rsp, err := c.call(ctx, &direct.Request{
		JSONRPC: direct.JSONRPCVersion,
		Method:  method,
		Params:  params,
		ID:      json.RawMessage(strconv.FormatUint(id, 10)),
	})
	if err != nil {
		return nil, err
	}
	if rsp.Error != nil {
		return nil, rsp.Error
	}
	if string(rsp.ID) != strconv.FormatUint(id, 10) {
		return nil, fmt.Errorf("client: response id mismatch: %s", rsp.ID)
	}

	var rv api.RpcReturnValue
	if err = rv.UnmarshalHex(rsp.Result); err != nil {
		return nil, err
	}

	c.logger.Debug("call completed",
		"method", method,
		"status", rv.Status,
	)
	return &rv, nil
}

// CallResult invokes a method and decodes its result into dst.
func (c *Client) CallResult(ctx context.Context, method string, params []string, dst interface{}) error {
	rv, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	return rv.Result(dst)
}

// CurrentCycle returns the verified on-chain current ceremony index.
func (c *Client) CurrentCycle(ctx context.Context) (encointer.CeremonyIndex, error) {
	var cindex encointer.CeremonyIndex
	err := c.CallResult(ctx, api.MethodCurrentCycle, nil, &cindex)
	return cindex, err
}

// FetchReputation fetches the reputation window of an account.
func (c *Client) FetchReputation(ctx context.Context, rq *api.FetchReputationRequest) (encointer.ReputationWindow, error) {
	var window encointer.ReputationWindow
	err := c.CallResult(ctx, api.MethodFetchReputation, rq.Params(), &window)
	return window, err
}

// IssueCredential issues a personhood credential.
func (c *Client) IssueCredential(ctx context.Context, rq *api.IssueCredentialRequest) (*api.IssueCredentialResult, error) {
	var result api.IssueCredentialResult
	if err := c.CallResult(ctx, api.MethodIssueCredential, rq.Params(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Methods lists the supported methods.
func (c *Client) Methods(ctx context.Context) ([]string, error) {
	var methods []string
	err := c.CallResult(ctx, api.MethodRPCMethods, nil, &methods)
	return methods, err
}

// Health returns the oracle health status.
func (c *Client) Health(ctx context.Context) (*api.HealthStatus, error) {
	var health api.HealthStatus
	if err := c.CallResult(ctx, api.MethodSystemHealth, nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Close closes the client.
func (c *Client) Close() {
	c.Lock()
	defer c.Unlock()

	if c.ws != nil {
		_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.ws.Close()
		c.ws = nil
	}
}

// Dial connects to a direct invocation endpoint. The ws and wss schemes use
// a persistent websocket connection, http and https post every request.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("client: malformed endpoint: %w", err)
	}

	c := &Client{
		logger:   logging.GetLogger("worker/direct/client"),
		endpoint: endpoint,
	}

	switch u.Scheme {
	case "http", "https":
		c.http = &http.Client{}
		return c, nil
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("client: unsupported endpoint scheme: '%s'", u.Scheme)
	}

	off := backoff.WithContext(cmnBackoff.NewBoundedBackOff(dialRetries, dialMaxInterval), ctx)
	err = backoff.RetryNotify(
		func() error {
			conn, _, derr := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
			if derr != nil {
				return derr
			}
			c.ws = conn
			return nil
		},
		off,
		func(err error, next time.Duration) {
			c.logger.Warn("failed to connect, retrying",
				"err", err,
				"endpoint", endpoint,
				"retry_in", next,
			)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("client: failed to connect to '%s': %w", endpoint, err)
	}
	return c, nil
}
