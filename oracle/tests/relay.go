package tests

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
)

// FakeRelay is a websocket relay recording received events.
type FakeRelay struct {
	sync.Mutex

	server   *httptest.Server
	upgrader websocket.Upgrader

	connections int
	events      []*nostr.Event
	done        chan struct{}
	doneOnce    sync.Once
}

// Address returns the websocket address of the relay.
func (r *FakeRelay) Address() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

// Connections returns the number of accepted connections.
func (r *FakeRelay) Connections() int {
	r.Lock()
	defer r.Unlock()
	return r.connections
}

// Events waits for the publishing connection to close and returns the
// received events in order.
func (r *FakeRelay) Events() []*nostr.Event {
	<-r.done

	r.Lock()
	defer r.Unlock()
	return append([]*nostr.Event{}, r.events...)
}

func (r *FakeRelay) handle(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	r.Lock()
	r.connections++
	r.Unlock()
	defer r.doneOnce.Do(func() { close(r.done) })

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage {
			continue
		}

		env, ok := nostr.ParseMessage(data).(*nostr.EventEnvelope)
		if !ok || env.SubscriptionID != nil {
			return
		}

		r.Lock()
		r.events = append(r.events, &env.Event)
		r.Unlock()
	}
}

// NewFakeRelay starts a new fake relay, stopped when the test completes.
func NewFakeRelay(t *testing.T) *FakeRelay {
	r := &FakeRelay{
		done: make(chan struct{}),
	}
	r.server = httptest.NewServer(http.HandlerFunc(r.handle))
	t.Cleanup(r.server.Close)
	return r
}

// FlakyConn is a relay connection accepting the first FailAfter frames and
// failing every later write.
type FlakyConn struct {
	sync.Mutex

	FailAfter int

	frames [][]byte
	closed bool
}

// Frames returns the accepted frames.
func (c *FlakyConn) Frames() [][]byte {
	c.Lock()
	defer c.Unlock()
	return append([][]byte{}, c.frames...)
}

// Closed reports whether the connection was closed.
func (c *FlakyConn) Closed() bool {
	c.Lock()
	defer c.Unlock()
	return c.closed
}

func (c *FlakyConn) WriteMessage(messageType int, data []byte) error {
	c.Lock()
	defer c.Unlock()
	if len(c.frames) >= c.FailAfter {
		return fmt.Errorf("broken pipe")
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *FlakyConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (c *FlakyConn) SetWriteDeadline(t time.Time) error {
	return nil
}

func (c *FlakyConn) Close() error {
	c.Lock()
	defer c.Unlock()
	c.closed = true
	return nil
}
