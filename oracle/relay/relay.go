// Package relay implements publishing of signed events to a relay.
package relay

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/encointer/personhood-oracle/common/errors"
	"github.com/encointer/personhood-oracle/common/logging"
	"github.com/encointer/personhood-oracle/oracle/api"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	closeTimeout            = time.Second
)

var (
	relayPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personhood_oracle_relay_publish",
			Help: "Number of relay publish attempts by outcome.",
		},
		[]string{"outcome"},
	)

	relayCollectors = []prometheus.Collector{
		relayPublished,
	}

	metricsOnce sync.Once
)

// SendError is the error returned when not all events could be written to
// the relay.
type SendError struct {
	// Confirmed is the number of events confirmed written.
	Confirmed int
	// Total is the number of events that should have been written.
	Total int

	err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s (confirmed %d of %d): %s", api.ErrRelaySend, e.Confirmed, e.Total, e.err)
}

// Unwrap returns the coded relay send error.
func (e *SendError) Unwrap() error {
	return api.ErrRelaySend
}

// Conn is the part of a relay websocket connection used for publishing.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc opens a connection to the relay at address.
type DialFunc func(ctx context.Context, address string) (Conn, error)

// Publisher publishes events to relays.
type Publisher struct {
	logger *logging.Logger
	dial   DialFunc
}

// Publish opens a connection to the relay and writes the events in order.
//
// It returns the number of events written. No retries are performed, the
// relay deduplicates events by identifier so the caller may retry the whole
// batch.
func (p *Publisher) Publish(ctx context.Context, address string, events ...*nostr.Event) (int, error) {
	u, err := url.Parse(address)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		relayPublished.WithLabelValues("connect_failure").Inc()
		return 0, errors.WithContext(api.ErrRelayConnect, fmt.Sprintf("invalid relay address '%s'", address))
	}

	conn, err := p.dial(ctx, u.String())
	if err != nil {
		relayPublished.WithLabelValues("connect_failure").Inc()
		return 0, errors.WithContext(api.ErrRelayConnect, err.Error())
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	var confirmed int
	for _, ev := range events {
		var msg []byte
		if msg, err = (nostr.EventEnvelope{Event: *ev}).MarshalJSON(); err == nil {
			err = conn.WriteMessage(websocket.TextMessage, msg)
		}
		if err != nil {
			relayPublished.WithLabelValues("send_failure").Inc()
			p.logger.Warn("failed to send event to relay",
				"err", err,
				"relay", u.Host,
				"confirmed", confirmed,
			)
			return confirmed, &SendError{Confirmed: confirmed, Total: len(events), err: err}
		}
		confirmed++

		p.logger.Debug("sent event to relay",
			"id", ev.ID,
			"kind", ev.Kind,
			"relay", u.Host,
		)
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout),
	)

	relayPublished.WithLabelValues("success").Inc()
	return confirmed, nil
}

// NewWithDialer creates a new relay publisher opening connections with dial.
func NewWithDialer(dial DialFunc) *Publisher {
	metricsOnce.Do(func() {
		prometheus.MustRegister(relayCollectors...)
	})

	return &Publisher{
		logger: logging.GetLogger("oracle/relay"),
		dial:   dial,
	}
}

// New creates a new relay publisher speaking websocket.
func New() *Publisher {
	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: defaultHandshakeTimeout,
	}
	return NewWithDialer(func(ctx context.Context, address string) (Conn, error) {
		conn, _, err := dialer.DialContext(ctx, address, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}
