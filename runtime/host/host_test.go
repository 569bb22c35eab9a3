package host

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/crypto/signature/signers/memory"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
	"github.com/encointer/personhood-oracle/light"
	"github.com/encointer/personhood-oracle/oracle/api"
	oracleConfig "github.com/encointer/personhood-oracle/oracle/config"
	"github.com/encointer/personhood-oracle/oracle/tests"
	"github.com/encointer/personhood-oracle/runtime/enclave"
	"github.com/encointer/personhood-oracle/runtime/host/protocol"
	storage "github.com/encointer/personhood-oracle/storage/api"
)

func newTestHost(t *testing.T, f *tests.Fixture) (*Host, *enclave.Guest) {
	require := require.New(t)
	ctx := context.Background()

	root, err := f.Chain.TrustRoot(ctx)
	require.NoError(err, "TrustRoot")

	oracleCfg := oracleConfig.DefaultConfig()
	oracleCfg.IssuerKeys = map[string]oracleConfig.IssuerKeyConfig{
		"events": {Label: "events"},
	}
	guest, err := enclave.New(&enclave.Config{
		TrustRoot: root,
		Identity:  memory.NewTestSigner("host test identity"),
		Oracle:    &oracleCfg,
	})
	require.NoError(err, "enclave.New")

	h, err := New(f.Store)
	require.NoError(err, "New")

	connGuest, connHost := net.Pipe()
	require.NoError(guest.Start(connGuest), "guest.Start")
	info, err := h.Start(ctx, connHost, &protocol.HostInfo{StorageBackend: storage.BackendProxied})
	require.NoError(err, "Start")
	require.Equal(root.Header.Height, info.LatestHeight, "enclave reports its trusted height")
	require.Contains(info.Methods, api.MethodFetchReputation)
	require.Contains(info.Methods, api.MethodIssueCredential)
	require.NotEmpty(info.IssuerKey)

	t.Cleanup(func() {
		h.Stop()
		guest.Stop()
	})
	return h, guest
}

func TestHostEnclave(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	f := tests.NewFixture(t, 5)
	h, guest := newTestHost(t, f)

	require.NoError(h.Ping(ctx), "Ping")

	// Advance the chain, the enclave only learns about it through the host.
	account := tests.TestAccount(42)
	f.SetReputations(t, account, 4, encointer.VerifiedUnlinked, encointer.VerifiedLinked, encointer.VerifiedUnlinked)
	f.Chain.SetCurrentCycle(6)
	blk, err := f.Chain.Commit(ctx)
	require.NoError(err, "Commit")

	rsp, err := h.ConsensusSync(ctx, blk)
	require.NoError(err, "ConsensusSync")
	require.Equal(blk.Header.Height, rsp.Height)
	require.Equal(blk.Header.Hash(), rsp.HeaderHash)
	require.Equal(blk.Header.Height, guest.LightClient().Snapshot().Height)

	// Replaying the same block is rejected by the light client.
	_, err = h.ConsensusSync(ctx, blk)
	require.ErrorIs(err, light.ErrStaleHeader, "stale headers must be rejected across the connection")

	cycle, err := h.CurrentCycle(ctx)
	require.NoError(err, "CurrentCycle")
	require.EqualValues(6, cycle.CurrentCycle)
	require.Equal(blk.Header.Height, cycle.Height)

	// Reads are proxied through the host chain store and verified in the enclave.
	rv, err := h.Call(ctx, &api.RpcRequest{
		Method: api.MethodFetchReputation,
		Params: (&api.FetchReputationRequest{
			Community:  tests.Community,
			Cycle:      5,
			Account:    account,
			WindowSize: 3,
		}).Params(),
	})
	require.NoError(err, "Call")
	require.Equal(api.StatusOk, rv.Status, string(rv.Value))

	var window encointer.ReputationWindow
	require.NoError(cbor.Unmarshal(rv.Value, &window))
	require.Len(window, 3)
	require.EqualValues(3, window.VerifiedCount())

	// Request failures are carried in the return value, not as errors.
	rv, err = h.Call(ctx, &api.RpcRequest{Method: "personhoodoracle_nope"})
	require.NoError(err, "Call")
	require.Equal(api.StatusError, rv.Status)

	var methods []string
	rv, err = h.Call(ctx, &api.RpcRequest{Method: api.MethodRPCMethods})
	require.NoError(err, "Call")
	require.NoError(rv.Result(&methods))
	require.Equal(guest.Gateway().Methods(), methods)
}

func TestHostInvalidArguments(t *testing.T) {
	require := require.New(t)

	f := tests.NewFixture(t, 1)
	h, _ := newTestHost(t, f)

	_, err := h.Call(context.Background(), nil)
	require.ErrorIs(err, ErrInvalidArgument)
	_, err = h.ConsensusSync(context.Background(), nil)
	require.ErrorIs(err, ErrInvalidArgument)
}
