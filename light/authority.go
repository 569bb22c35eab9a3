package light

import (
	"fmt"

	"github.com/encointer/personhood-oracle/common/crypto/signature"
	consensus "github.com/encointer/personhood-oracle/consensus/api"
)

// AuthoritySet is the set of authorities whose signatures finalize headers.
type AuthoritySet struct {
	keys      map[signature.PublicKey]struct{}
	threshold int
}

// DefaultThreshold returns the minimum number of signatures forming a strict
// two thirds majority of n authorities.
func DefaultThreshold(n int) int {
	return n*2/3 + 1
}

// NewAuthoritySet creates a new authority set. A zero threshold selects the
// default strict two thirds majority.
func NewAuthoritySet(keys []signature.PublicKey, threshold int) (*AuthoritySet, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: empty authority set", ErrInvalidTrustRoot)
	}

	s := &AuthoritySet{
		keys:      make(map[signature.PublicKey]struct{}, len(keys)),
		threshold: threshold,
	}
	for _, k := range keys {
		if _, ok := s.keys[k]; ok {
			return nil, fmt.Errorf("%w: duplicate authority %s", ErrInvalidTrustRoot, k)
		}
		s.keys[k] = struct{}{}
	}

	if s.threshold == 0 {
		s.threshold = DefaultThreshold(len(keys))
	}
	if s.threshold < 0 || s.threshold > len(keys) {
		return nil, fmt.Errorf("%w: threshold %d out of range for %d authorities", ErrInvalidTrustRoot, threshold, len(keys))
	}
	return s, nil
}

// Len returns the number of authorities.
func (s *AuthoritySet) Len() int {
	return len(s.keys)
}

// Threshold returns the number of signatures required to finalize a header.
func (s *AuthoritySet) Threshold() int {
	return s.threshold
}

// Verify verifies that the justification finalizes the header.
func (s *AuthoritySet) Verify(header *consensus.Header, justification *consensus.Justification) error {
	h := header.Hash()

	seen := make(map[signature.PublicKey]struct{}, len(justification.Signatures))
	for i := range justification.Signatures {
		sig := &justification.Signatures[i]
		if _, ok := s.keys[sig.PublicKey]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSigner, sig.PublicKey)
		}
		if _, ok := seen[sig.PublicKey]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSigner, sig.PublicKey)
		}
		if !sig.Verify(consensus.HeaderSignatureContext, h[:]) {
			return fmt.Errorf("%w: signer %s", ErrInvalidSignature, sig.PublicKey)
		}
		seen[sig.PublicKey] = struct{}{}
	}

	if len(seen) < s.threshold {
		return fmt.Errorf("%w: got %d, need %d", ErrInsufficientSignatures, len(seen), s.threshold)
	}
	return nil
}
