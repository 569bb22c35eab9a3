package direct

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/oracle/api"
	"github.com/encointer/personhood-oracle/worker/direct/config"
)

type echoCaller struct {
	err error
}

func (c *echoCaller) Call(ctx context.Context, rq *api.RpcRequest) (*api.RpcReturnValue, error) {
	if c.err != nil {
		return nil, c.err
	}
	if rq.Method == "personhoodoracle_fail" {
		return api.NewError(api.ErrNoReputation), nil
	}
	return api.NewOk(append([]string{rq.Method}, rq.Params...)), nil
}

func newTestServer(t *testing.T, caller Caller) *httptest.Server {
	cfg := config.DefaultConfig()
	srv := httptest.NewServer(New(&cfg, caller).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *Response {
	rsp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err, "Post")
	defer rsp.Body.Close()
	require.Equal(t, http.StatusOK, rsp.StatusCode)

	var out Response
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&out), "Decode")
	require.Equal(t, JSONRPCVersion, out.JSONRPC)
	return &out
}

func TestHTTP(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t, &echoCaller{})

	rsp := postJSON(t, srv.URL, `{"jsonrpc":"2.0","method":"rpc_methods","params":["0x01"],"id":7}`)
	require.Nil(rsp.Error)
	require.Equal("7", string(rsp.ID))
	require.True(strings.HasPrefix(rsp.Result, "0x"), "result must be hex")

	var rv api.RpcReturnValue
	require.NoError(rv.UnmarshalHex(rsp.Result))
	var echoed []string
	require.NoError(rv.Result(&echoed))
	require.Equal([]string{"rpc_methods", "0x01"}, echoed)

	// Oracle errors travel inside the envelope.
	rsp = postJSON(t, srv.URL, `{"jsonrpc":"2.0","method":"personhoodoracle_fail","params":[],"id":"a"}`)
	require.Nil(rsp.Error)
	require.NoError(rv.UnmarshalHex(rsp.Result))
	require.Equal(api.StatusError, rv.Status)
	require.Equal(api.ErrNoReputation.Error(), string(rv.Value))

	rsp = postJSON(t, srv.URL, `{"jsonrpc":"2.0","method":`)
	require.NotNil(rsp.Error)
	require.Equal(codeParseError, rsp.Error.Code)

	rsp = postJSON(t, srv.URL, `{"jsonrpc":"1.0","method":"rpc_methods","id":1}`)
	require.NotNil(rsp.Error)
	require.Equal(codeInvalidRequest, rsp.Error.Code)

	// Only POST is routed.
	getRsp, err := http.Get(srv.URL)
	require.NoError(err)
	getRsp.Body.Close()
	require.Equal(http.StatusMethodNotAllowed, getRsp.StatusCode)
}

func TestHTTPEnclaveUnavailable(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t, &echoCaller{err: fmt.Errorf("connection closed")})

	rsp := postJSON(t, srv.URL, `{"jsonrpc":"2.0","method":"rpc_methods","params":[],"id":1}`)
	require.NotNil(rsp.Error)
	require.Equal(codeInternalError, rsp.Error.Code)
	require.Empty(rsp.Result)
}

func TestHTTPRequestTooLarge(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t, &echoCaller{})

	body := bytes.Repeat([]byte("a"), int(config.DefaultConfig().MaxRequestSize)+1)
	rsp, err := http.Post(srv.URL, "application/json", bytes.NewReader(body))
	require.NoError(err)
	rsp.Body.Close()
	require.Equal(http.StatusRequestEntityTooLarge, rsp.StatusCode)
}

func TestWebSocket(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t, &echoCaller{})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+PathWebSocket, nil)
	require.NoError(err, "Dial")
	defer conn.Close()

	for i := 0; i < 3; i++ {
		rq := fmt.Sprintf(`{"jsonrpc":"2.0","method":"system_health","params":[],"id":%d}`, i)
		require.NoError(conn.WriteMessage(websocket.TextMessage, []byte(rq)))

		var rsp Response
		require.NoError(conn.ReadJSON(&rsp))
		require.Nil(rsp.Error)
		require.Equal(fmt.Sprintf("%d", i), string(rsp.ID))

		var rv api.RpcReturnValue
		require.NoError(rv.UnmarshalHex(rsp.Result))
		require.Equal(api.StatusOk, rv.Status)
	}
}

func TestStartStop(t *testing.T) {
	require := require.New(t)

	cfg := config.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	w := New(&cfg, &echoCaller{})
	require.NoError(w.Start(), "Start")
	require.NotNil(w.Addr())

	rsp := postJSON(t, fmt.Sprintf("http://%s%s", w.Addr(), PathHTTP), `{"jsonrpc":"2.0","method":"rpc_methods","id":1}`)
	require.Nil(rsp.Error)

	w.Stop()
	select {
	case <-w.Quit():
	case <-time.After(5 * time.Second):
		require.Fail("worker did not terminate")
	}
	require.NotPanics(w.Stop, "repeated Stop")

	disabled := config.DefaultConfig()
	disabled.Enabled = false
	d := New(&disabled, &echoCaller{})
	require.NoError(d.Start())
	require.NotPanics(d.Stop)
	require.NotPanics(d.Stop, "repeated Stop")
	<-d.Quit()
}
