// Package api defines the untrusted view of the host chain: finalized
// headers, their justifications and the light block provider interface.
package api

import (
	"context"
	"fmt"

	"github.com/encointer/personhood-oracle/common/crypto/hash"
	"github.com/encointer/personhood-oracle/common/crypto/signature"
	"github.com/encointer/personhood-oracle/common/errors"
)

// ModuleName is the module name used for error definitions.
const ModuleName = "consensus"

var (
	// ErrVersionNotFound is the error returned when a light block at the
	// given height does not exist.
	ErrVersionNotFound = errors.New(ModuleName, 1, "consensus: version not found")

	// HeaderSignatureContext is the signature context used by authorities
	// to justify finalized headers.
	HeaderSignatureContext = signature.NewContext("po/hdr01")
)

// Header is a finalized chain header.
type Header struct {
	// Height contains the block height.
	Height uint64 `json:"height"`
	// ParentHash is the hash of the parent header.
	ParentHash hash.Hash `json:"parent_hash"`
	// StateRoot is the commitment over the chain state after this block.
	StateRoot hash.Hash `json:"state_root"`
	// Timestamp is the block timestamp in seconds since the unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// Hash returns the header hash.
func (h *Header) Hash() hash.Hash {
	return hash.NewFrom(h)
}

// String returns a short string representation of the header.
func (h *Header) String() string {
	return fmt.Sprintf("<Header height=%d hash=%s>", h.Height, h.Hash())
}

// Justification is a set of authority signatures over a header hash.
type Justification struct {
	Signatures []signature.Signature `json:"signatures"`
}

// Justify signs the header with all the given authority signers.
func Justify(header *Header, signers ...signature.Signer) (*Justification, error) {
	h := header.Hash()

	var j Justification
	for _, signer := range signers {
		sig, err := signature.Sign(signer, HeaderSignatureContext, h[:])
		if err != nil {
			return nil, fmt.Errorf("consensus: failed to justify header: %w", err)
		}
		j.Signatures = append(j.Signatures, *sig)
	}
	return &j, nil
}

// LightBlock is a finalized header with its justification, suitable for
// syncing light clients.
type LightBlock struct {
	Header        Header        `json:"header"`
	Justification Justification `json:"justification"`
}

// LightProvider is an untrusted light block provider.
//
// Warning: Light blocks returned by this provider are untrusted and should be
// verified before use.
type LightProvider interface {
	// LatestHeight returns the height of the latest finalized block.
	LatestHeight(ctx context.Context) (uint64, error)

	// LightBlock retrieves an untrusted light block at the specified height.
	LightBlock(ctx context.Context, height uint64) (*LightBlock, error)
}
