// Package gateway implements the personhood oracle request gateway.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/encointer/personhood-oracle/common/errors"
	"github.com/encointer/personhood-oracle/common/logging"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
	"github.com/encointer/personhood-oracle/light"
	"github.com/encointer/personhood-oracle/oracle/api"
	"github.com/encointer/personhood-oracle/oracle/credential"
	"github.com/encointer/personhood-oracle/oracle/reader"
	"github.com/encointer/personhood-oracle/oracle/reputation"
	storage "github.com/encointer/personhood-oracle/storage/api"
)

// DefaultRelayTimeout is the default bound on a single relay publish.
const DefaultRelayTimeout = 30 * time.Second

const unknownMethodLabel = "unknown"

// ChainState provides trusted chain state snapshots.
type ChainState interface {
	// Snapshot returns the latest trusted snapshot.
	Snapshot() *light.Snapshot
}

// Publisher publishes signed events to a relay.
type Publisher interface {
	// Publish writes the events in order and returns how many were written.
	Publish(ctx context.Context, address string, events ...*nostr.Event) (int, error)
}

// Config is the gateway configuration.
type Config struct {
	// RelayTimeout bounds a single relay publish.
	RelayTimeout time.Duration
}

type handlerFunc func(ctx context.Context, params []string) (interface{}, error)

// Gateway dispatches oracle requests.
type Gateway struct {
	logger *logging.Logger

	chain      ChainState
	reader     *reader.Reader
	aggregator *reputation.Aggregator
	issuer     *credential.Issuer
	keyring    *credential.Keyring
	publisher  Publisher

	relayTimeout time.Duration

	methods map[string]handlerFunc
}

// Methods returns the sorted names of all supported methods.
func (g *Gateway) Methods() []string {
	methods := make([]string, 0, len(g.methods))
	for name := range g.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// Handle handles a request. It never fails, errors are reported in the
// returned envelope.
func (g *Gateway) Handle(ctx context.Context, rq *api.RpcRequest) (rv *api.RpcReturnValue) {
	start := time.Now()

	handler, ok := g.methods[rq.Method]
	label := rq.Method
	if !ok {
		label = unknownMethodLabel
	}

	defer func() {
		if p := recover(); p != nil {
			gatewayPanics.Inc()
			g.logger.Error("recovered panic in handler",
				"method", label,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			rv = api.NewError(errors.WithContext(api.ErrInternal, fmt.Sprintf("%v", p)))
		}

		gatewayRequests.WithLabelValues(label, rv.Status.String()).Inc()
		gatewayLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	if !ok {
		return api.NewError(errors.WithContext(api.ErrUnknownMethod, rq.Method))
	}

	result, err := handler(ctx, rq.Params)
	if err != nil && !errors.IsCoded(err) {
		g.logger.Error("request failed with an unexpected error",
			"method", rq.Method,
			"err", err,
		)
		err = errors.WithContext(api.ErrInternal, err.Error())
	}
	if err != nil {
		module, code := errors.Code(err)
		g.logger.Debug("request failed",
			"method", rq.Method,
			"err", err,
			"module", module,
			"code", code,
		)
		return api.NewError(err)
	}
	return api.NewOk(result)
}

// fetch fetches the reputation window using a single trusted snapshot.
func (g *Gateway) fetch(ctx context.Context, rq *api.FetchReputationRequest) (encointer.ReputationWindow, error) {
	if err := reputation.CheckWindow(rq.Cycle, rq.WindowSize); err != nil {
		return nil, err
	}

	snap := g.chain.Snapshot()
	current, err := g.reader.ReadCurrentCycle(ctx, snap)
	if err != nil {
		return nil, err
	}
	if rq.Cycle > current {
		return nil, errors.WithContext(api.ErrCycleAhead, fmt.Sprintf("cycle %d, on-chain current cycle %d", rq.Cycle, current))
	}

	window, err := g.aggregator.Aggregate(ctx, snap, rq.Community, rq.Account, rq.Cycle, rq.WindowSize)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("fetched reputation",
		"account", rq.Account,
		"cycle", rq.Cycle,
		"window_size", rq.WindowSize,
		"verified", window.VerifiedCount(),
		"height", snap.Height,
	)
	return window, nil
}

func (g *Gateway) handleFetchReputation(ctx context.Context, params []string) (interface{}, error) {
	if err := api.CheckParamCount(params, 4, 4); err != nil {
		return nil, err
	}
	rq, err := api.DecodeFetchReputation(params)
	if err != nil {
		return nil, err
	}
	return g.fetch(ctx, rq)
}

func (g *Gateway) handleIssueCredential(ctx context.Context, params []string) (interface{}, error) {
	rq, err := api.DecodeIssueCredential(params)
	if err != nil {
		return nil, err
	}
	var subject credential.SubjectKey
	if err = subject.UnmarshalText([]byte(rq.SubjectKey)); err != nil {
		return nil, errors.WithContext(api.ErrParamDecode, fmt.Sprintf("parameter 4 (subject_key): %s", err))
	}
	// The award is public, it must not link back to the on-chain account.
	if bytes.Equal(subject[:], rq.Account[:]) {
		return nil, errors.WithContext(api.ErrParamDecode, "parameter 4 (subject_key): must differ from the account")
	}
	key, ok := g.keyring.Get(rq.IssuerKey)
	if !ok {
		return nil, errors.WithContext(api.ErrParamDecode, fmt.Sprintf("parameter 6 (issuer_key): unknown issuer key '%s'", rq.IssuerKey))
	}

	window, err := g.fetch(ctx, &rq.FetchReputationRequest)
	if err != nil {
		return nil, err
	}
	verifiedCount := window.VerifiedCount()
	if verifiedCount == 0 {
		return nil, errors.WithContext(api.ErrNoReputation, fmt.Sprintf("window of %d cycles", rq.WindowSize))
	}

	def, award, err := g.issuer.Issue(verifiedCount, subject, key)
	if err != nil {
		return nil, err
	}

	relayCtx, cancel := context.WithTimeout(ctx, g.relayTimeout)
	defer cancel()

	confirmed, err := g.publisher.Publish(relayCtx, rq.RelayAddress, &def.Event, &award.Event)
	if err != nil {
		return nil, err
	}

	g.logger.Info("issued credential",
		"definition_id", def.ID,
		"award_id", award.ID,
		"tier", credential.Tier(verifiedCount),
	)

	return &api.IssueCredentialResult{
		DefinitionID: def.ID,
		AwardID:      award.ID,
		IssuerKey:    key.Public(),
		Confirmed:    confirmed,
	}, nil
}

func (g *Gateway) handleCurrentCycle(ctx context.Context, params []string) (interface{}, error) {
	if err := api.CheckParamCount(params, 0, 0); err != nil {
		return nil, err
	}
	return g.reader.ReadCurrentCycle(ctx, g.chain.Snapshot())
}

func (g *Gateway) handleRPCMethods(ctx context.Context, params []string) (interface{}, error) {
	return g.Methods(), nil
}

func (g *Gateway) handleSystemHealth(ctx context.Context, params []string) (interface{}, error) {
	snap := g.chain.Snapshot()
	return &api.HealthStatus{
		Height:    snap.Height,
		Timestamp: snap.Timestamp,
	}, nil
}

// New creates a new gateway.
func New(
	cfg *Config,
	chain ChainState,
	backend storage.Backend,
	keyring *credential.Keyring,
	clock credential.Clock,
	publisher Publisher,
) *Gateway {
	initMetrics()

	r := reader.New(backend)
	g := &Gateway{
		logger:       logging.NewFilterLogger(logging.GetLogger("oracle/gateway"), "account", "subject_key"),
		chain:        chain,
		reader:       r,
		aggregator:   reputation.New(r),
		issuer:       credential.NewIssuer(clock),
		keyring:      keyring,
		publisher:    publisher,
		relayTimeout: cfg.RelayTimeout,
	}
	if g.relayTimeout <= 0 {
		g.relayTimeout = DefaultRelayTimeout
	}

	g.methods = map[string]handlerFunc{
		api.MethodFetchReputation: g.handleFetchReputation,
		api.MethodIssueCredential: g.handleIssueCredential,
		api.MethodCurrentCycle:    g.handleCurrentCycle,
		api.MethodRPCMethods:      g.handleRPCMethods,
		api.MethodSystemHealth:    g.handleSystemHealth,
	}
	return g
}
