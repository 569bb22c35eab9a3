// Package enclave implements the trusted side of the oracle: it owns the
// light client, the issuer keyring and the request gateway, and serves the
// host over the Runtime Host Protocol.
package enclave

import (
	"context"
	"fmt"
	"net"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/crypto/signature"
	"github.com/encointer/personhood-oracle/common/logging"
	"github.com/encointer/personhood-oracle/common/version"
	"github.com/encointer/personhood-oracle/light"
	"github.com/encointer/personhood-oracle/oracle/api"
	oracleConfig "github.com/encointer/personhood-oracle/oracle/config"
	"github.com/encointer/personhood-oracle/oracle/credential"
	"github.com/encointer/personhood-oracle/oracle/gateway"
	"github.com/encointer/personhood-oracle/oracle/reader"
	"github.com/encointer/personhood-oracle/oracle/relay"
	"github.com/encointer/personhood-oracle/runtime/host/protocol"
	storage "github.com/encointer/personhood-oracle/storage/api"
	storageHost "github.com/encointer/personhood-oracle/storage/host"
)

// DefaultIssuerKeyLabel is the derivation label of the default issuer key.
const DefaultIssuerKeyLabel = "default"

var _ protocol.Handler = (*Guest)(nil)

// Config is the enclave configuration.
type Config struct {
	// TrustRoot bootstraps the light client.
	TrustRoot *light.TrustRoot

	// Identity is the enclave identity signer all issuer keys derive from.
	Identity signature.Signer

	// Oracle is the oracle configuration.
	Oracle *oracleConfig.Config

	// LocalBackend serves reads when the direct storage backend is selected.
	LocalBackend storage.Backend

	// Publisher overrides the relay publisher, mostly useful for tests.
	Publisher gateway.Publisher
}

// Guest is the trusted side of the host protocol connection.
type Guest struct {
	logger *logging.Logger

	conn    protocol.Connection
	client  *light.Client
	keyring *credential.Keyring
	reader  *reader.Reader
	gateway *gateway.Gateway
}

// Gateway returns the request gateway.
func (g *Guest) Gateway() *gateway.Gateway {
	return g.gateway
}

// LightClient returns the light client.
func (g *Guest) LightClient() *light.Client {
	return g.client
}

// Start starts serving the host on the given connection.
func (g *Guest) Start(conn net.Conn) error {
	return g.conn.InitGuest(conn)
}

// Stop closes the host connection.
func (g *Guest) Stop() {
	g.conn.Close()
}

// Implements protocol.Handler.
func (g *Guest) Handle(ctx context.Context, body *protocol.Body) (*protocol.Body, error) {
	switch {
	case body.RuntimeInfoRequest != nil:
		return g.handleInfo(body.RuntimeInfoRequest)
	case body.RuntimePingRequest != nil:
		return &protocol.Body{Empty: &protocol.Empty{}}, nil
	case body.RuntimeRPCCallRequest != nil:
		return g.handleRPCCall(ctx, body.RuntimeRPCCallRequest)
	case body.RuntimeConsensusSyncRequest != nil:
		return g.handleConsensusSync(body.RuntimeConsensusSyncRequest)
	case body.RuntimeCurrentCycleRequest != nil:
		return g.handleCurrentCycle(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnsupportedRequest, body.Type())
	}
}

func (g *Guest) handleInfo(rq *protocol.RuntimeInfoRequest) (*protocol.Body, error) {
	g.logger.Info("host connected",
		"storage_backend", rq.StorageBackend,
	)

	issuer, _ := g.keyring.Get("")
	return &protocol.Body{RuntimeInfoResponse: &protocol.RuntimeInfoResponse{
		ProtocolVersion: version.RuntimeHostProtocol,
		SoftwareVersion: version.SoftwareVersion,
		LatestHeight:    g.client.Snapshot().Height,
		IssuerKey:       issuer.String(),
		Methods:         g.gateway.Methods(),
	}}, nil
}

func (g *Guest) handleRPCCall(ctx context.Context, rq *protocol.RuntimeRPCCallRequest) (*protocol.Body, error) {
	var rv *api.RpcReturnValue

	var call api.RpcRequest
	if err := cbor.Unmarshal(rq.Request, &call); err != nil {
		rv = api.NewError(fmt.Errorf("%w: malformed request: %s", api.ErrParamDecode, err))
	} else {
		rv = g.gateway.Handle(ctx, &call)
	}

	return &protocol.Body{RuntimeRPCCallResponse: &protocol.RuntimeRPCCallResponse{
		Response: cbor.Marshal(rv),
	}}, nil
}

func (g *Guest) handleConsensusSync(rq *protocol.RuntimeConsensusSyncRequest) (*protocol.Body, error) {
	if err := g.client.Update(&rq.LightBlock); err != nil {
		return nil, err
	}

	snap := g.client.Snapshot()
	return &protocol.Body{RuntimeConsensusSyncResponse: &protocol.RuntimeConsensusSyncResponse{
		Height:     snap.Height,
		HeaderHash: snap.HeaderHash,
	}}, nil
}

func (g *Guest) handleCurrentCycle(ctx context.Context) (*protocol.Body, error) {
	snap := g.client.Snapshot()
	cindex, err := g.reader.ReadCurrentCycle(ctx, snap)
	if err != nil {
		return nil, err
	}

	return &protocol.Body{RuntimeCurrentCycleResponse: &protocol.RuntimeCurrentCycleResponse{
		Height:       snap.Height,
		CurrentCycle: cindex,
	}}, nil
}

// NewKeyring builds the issuer keyring from the enclave identity and the
// configured named keys.
func NewKeyring(identity signature.Signer, cfg map[string]oracleConfig.IssuerKeyConfig) (*credential.Keyring, error) {
	defaultKey, err := credential.DeriveSigningKey(identity, DefaultIssuerKeyLabel)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]*credential.SigningKey, len(cfg))
	for name, kc := range cfg {
		var key *credential.SigningKey
		switch {
		case kc.Label != "":
			key, err = credential.DeriveSigningKey(identity, kc.Label)
		default:
			key, err = credential.NewSigningKey(kc.Secret)
		}
		if err != nil {
			return nil, fmt.Errorf("enclave: issuer key '%s': %w", name, err)
		}
		keys[name] = key
	}

	return credential.NewKeyring(defaultKey, keys)
}

// New creates a new enclave guest.
func New(cfg *Config) (*Guest, error) {
	if cfg.Identity == nil {
		return nil, fmt.Errorf("enclave: missing identity")
	}

	client, err := light.NewClient(cfg.TrustRoot)
	if err != nil {
		return nil, fmt.Errorf("enclave: failed to create light client: %w", err)
	}
	keyring, err := NewKeyring(cfg.Identity, cfg.Oracle.IssuerKeys)
	if err != nil {
		return nil, err
	}

	g := &Guest{
		logger:  logging.GetLogger("runtime/enclave"),
		client:  client,
		keyring: keyring,
	}
	if g.conn, err = protocol.NewConnection(logging.GetLogger("rhp/enclave"), g); err != nil {
		return nil, err
	}

	var backend storage.Backend
	switch cfg.Oracle.StorageBackend {
	case storage.BackendDirect:
		if cfg.LocalBackend == nil {
			return nil, fmt.Errorf("enclave: direct storage backend requires a local chain store")
		}
		backend = cfg.LocalBackend
	case storage.BackendProxied:
		backend = storageHost.New(g.conn)
	default:
		return nil, fmt.Errorf("enclave: unknown storage backend: %s", cfg.Oracle.StorageBackend)
	}

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = relay.New()
	}

	g.reader = reader.New(backend)
	g.gateway = gateway.New(
		&gateway.Config{RelayTimeout: cfg.Oracle.RelayTimeout},
		client,
		backend,
		keyring,
		client.Clock(),
		publisher,
	)

	g.logger.Info("enclave initialized",
		"storage_backend", cfg.Oracle.StorageBackend,
		"trusted_height", client.Snapshot().Height,
		"issuer_keys", keyring.Names(),
	)

	return g, nil
}
