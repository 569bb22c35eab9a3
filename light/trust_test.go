package light

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/crypto/hash"
	consensus "github.com/encointer/personhood-oracle/consensus/api"
	"github.com/encointer/personhood-oracle/light/config"
)

type testProvider struct {
	blocks map[uint64]*consensus.LightBlock
}

func (p *testProvider) LatestHeight(context.Context) (uint64, error) {
	var latest uint64
	for h := range p.blocks {
		if h > latest {
			latest = h
		}
	}
	return latest, nil
}

func (p *testProvider) LightBlock(_ context.Context, height uint64) (*consensus.LightBlock, error) {
	blk, ok := p.blocks[height]
	if !ok {
		return nil, consensus.ErrVersionNotFound
	}
	return blk, nil
}

func TestTrustRootFromConfig(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	tc := newTestChain(3)
	blk := tc.next(t)
	provider := &testProvider{blocks: map[uint64]*consensus.LightBlock{blk.Header.Height: blk}}

	var authorities []string
	for _, pk := range tc.authorities() {
		authorities = append(authorities, pk.String())
	}
	blkHash := blk.Header.Hash()
	cfg := config.TrustConfig{
		Height:      blk.Header.Height,
		Hash:        blkHash.String(),
		Authorities: authorities,
		Threshold:   2,
	}

	root, err := TrustRootFromConfig(ctx, provider, &cfg)
	require.NoError(err, "TrustRootFromConfig")
	require.Equal(blk.Header, root.Header)
	require.Equal(tc.authorities(), root.Authorities)
	require.Equal(2, root.Threshold)

	_, err = NewClient(root)
	require.NoError(err, "NewClient")

	// A checkpoint that does not match the configured hash is rejected.
	bad := cfg
	bad.Hash = hash.NewFromBytes([]byte("not the checkpoint")).String()
	_, err = TrustRootFromConfig(ctx, provider, &bad)
	require.ErrorIs(err, ErrInvalidTrustRoot)

	missing := cfg
	missing.Height++
	_, err = TrustRootFromConfig(ctx, provider, &missing)
	require.ErrorIs(err, consensus.ErrVersionNotFound)

	_, err = TrustRootFromConfig(ctx, provider, &config.TrustConfig{})
	require.ErrorIs(err, ErrInvalidTrustRoot, "unconfigured trust root")
}
