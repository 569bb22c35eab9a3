// Package light implements the in-enclave light client tracking finalized
// headers of the host chain.
package light

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/encointer/personhood-oracle/common/crypto/hash"
	"github.com/encointer/personhood-oracle/common/crypto/signature"
	"github.com/encointer/personhood-oracle/common/errors"
	"github.com/encointer/personhood-oracle/common/logging"
	consensus "github.com/encointer/personhood-oracle/consensus/api"
)

// ModuleName is the light client module name.
const ModuleName = "light"

var (
	// ErrInvalidTrustRoot is the error returned when the trust root is invalid.
	ErrInvalidTrustRoot = errors.New(ModuleName, 1, "light: invalid trust root")
	// ErrStaleHeader is the error returned when a header is not higher than
	// the latest trusted header.
	ErrStaleHeader = errors.New(ModuleName, 2, "light: stale header")
	// ErrParentMismatch is the error returned when a header does not chain
	// to the latest trusted header.
	ErrParentMismatch = errors.New(ModuleName, 3, "light: parent hash mismatch")
	// ErrUnknownSigner is the error returned when a justification contains
	// a signature from outside the authority set.
	ErrUnknownSigner = errors.New(ModuleName, 4, "light: unknown signer")
	// ErrDuplicateSigner is the error returned when a justification contains
	// multiple signatures by the same authority.
	ErrDuplicateSigner = errors.New(ModuleName, 5, "light: duplicate signer")
	// ErrInvalidSignature is the error returned when a signature does not
	// verify.
	ErrInvalidSignature = errors.New(ModuleName, 6, "light: invalid signature")
	// ErrInsufficientSignatures is the error returned when a justification
	// does not reach the authority threshold.
	ErrInsufficientSignatures = errors.New(ModuleName, 7, "light: insufficient signatures")
)

// TrustRoot is the out-of-band trusted starting point of the light client.
type TrustRoot struct {
	// Header is the trusted checkpoint header.
	Header consensus.Header `json:"header"`
	// Authorities are the public keys of the finalizing authorities.
	Authorities []signature.PublicKey `json:"authorities"`
	// Threshold is the number of signatures required, zero selects the
	// default strict two thirds majority.
	Threshold int `json:"threshold,omitempty"`
}

// Snapshot is an immutable view of the latest trusted header.
type Snapshot struct {
	// Height is the trusted header height.
	Height uint64
	// HeaderHash is the trusted header hash.
	HeaderHash hash.Hash
	// StateRoot is the state root committed by the trusted header.
	StateRoot hash.Hash
	// Timestamp is the trusted header timestamp.
	Timestamp int64
}

func newSnapshot(h *consensus.Header) *Snapshot {
	return &Snapshot{
		Height:     h.Height,
		HeaderHash: h.Hash(),
		StateRoot:  h.StateRoot,
		Timestamp:  h.Timestamp,
	}
}

// Client is a light client following finalized headers.
type Client struct {
	// updateLock serializes updates, readers go through latest.
	updateLock sync.Mutex

	logger *logging.Logger

	authorities *AuthoritySet
	latest      atomic.Pointer[Snapshot]
	clock       *AnchoredClock
}

// Snapshot returns the latest trusted snapshot.
func (c *Client) Snapshot() *Snapshot {
	return c.latest.Load()
}

// Clock returns the clock anchored to the latest trusted header.
func (c *Client) Clock() *AnchoredClock {
	return c.clock
}

// Authorities returns the authority set.
func (c *Client) Authorities() *AuthoritySet {
	return c.authorities
}

// Update verifies the light block and, if valid, makes it the latest trusted
// header.
func (c *Client) Update(blk *consensus.LightBlock) error {
	c.updateLock.Lock()
	defer c.updateLock.Unlock()

	if err := c.verify(blk); err != nil {
		lightRejected.Inc()
		c.logger.Warn("rejected header",
			"err", err,
			"height", blk.Header.Height,
		)
		return err
	}

	snap := newSnapshot(&blk.Header)
	c.latest.Store(snap)
	c.clock.Anchor(snap.Timestamp)
	lightHeight.Set(float64(snap.Height))

	c.logger.Debug("accepted header",
		"height", snap.Height,
		"hash", snap.HeaderHash,
		"state_root", snap.StateRoot,
	)
	return nil
}

func (c *Client) verify(blk *consensus.LightBlock) error {
	latest := c.latest.Load()
	switch h := &blk.Header; {
	case h.Height <= latest.Height:
		return fmt.Errorf("%w: height %d (latest: %d)", ErrStaleHeader, h.Height, latest.Height)
	case h.Height == latest.Height+1 && !h.ParentHash.Equal(&latest.HeaderHash):
		return fmt.Errorf("%w: height %d", ErrParentMismatch, h.Height)
	}
	return c.authorities.Verify(&blk.Header, &blk.Justification)
}

// NewClient creates a new light client from the given trust root.
func NewClient(root *TrustRoot) (*Client, error) {
	authorities, err := NewAuthoritySet(root.Authorities, root.Threshold)
	if err != nil {
		return nil, err
	}

	initMetrics()

	c := &Client{
		logger:      logging.GetLogger("light"),
		authorities: authorities,
		clock:       NewAnchoredClock(root.Header.Timestamp),
	}
	snap := newSnapshot(&root.Header)
	c.latest.Store(snap)
	lightHeight.Set(float64(snap.Height))

	c.logger.Info("light client initialized",
		"height", snap.Height,
		"hash", snap.HeaderHash,
		"authorities", authorities.Len(),
		"threshold", authorities.Threshold(),
	)
	return c, nil
}
