package light

import (
	"context"
	"fmt"

	consensus "github.com/encointer/personhood-oracle/consensus/api"
	"github.com/encointer/personhood-oracle/light/config"
)

// TrustRootFromConfig builds the trust root from the configured checkpoint,
// taking the checkpoint header from the provider and checking it against the
// configured hash.
func TrustRootFromConfig(ctx context.Context, provider consensus.LightProvider, cfg *config.TrustConfig) (*TrustRoot, error) {
	if cfg.Hash == "" {
		return nil, fmt.Errorf("%w: no trusted checkpoint configured", ErrInvalidTrustRoot)
	}
	trustedHash, err := cfg.HeaderHash()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTrustRoot, err)
	}
	authorities, err := cfg.AuthorityKeys()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTrustRoot, err)
	}

	blk, err := provider.LightBlock(ctx, cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("light: failed to fetch checkpoint at height %d: %w", cfg.Height, err)
	}
	if h := blk.Header.Hash(); !h.Equal(&trustedHash) {
		return nil, fmt.Errorf("%w: checkpoint hash mismatch (expected: %s got: %s)", ErrInvalidTrustRoot, trustedHash, h)
	}

	return &TrustRoot{
		Header:      blk.Header,
		Authorities: authorities,
		Threshold:   cfg.Threshold,
	}, nil
}
