package api

import "fmt"

// ReputationKind is the kind of reputation an account holds for a cycle.
type ReputationKind uint8

const (
	// Unverified means there is no attendance evidence for the cycle.
	Unverified ReputationKind = iota
	// UnverifiedReputable means the account was vouched for but did not attend.
	UnverifiedReputable
	// VerifiedUnlinked means attendance was verified and the reputation has
	// not been used yet.
	VerifiedUnlinked
	// VerifiedLinked means attendance was verified and the reputation was
	// already linked to a later cycle.
	VerifiedLinked
)

// String returns the string representation of a reputation kind.
func (k ReputationKind) String() string {
	switch k {
	case Unverified:
		return "unverified"
	case UnverifiedReputable:
		return "unverified_reputable"
	case VerifiedUnlinked:
		return "verified_unlinked"
	case VerifiedLinked:
		return "verified_linked"
	default:
		return fmt.Sprintf("[unknown reputation kind: %d]", uint8(k))
	}
}

// MarshalText encodes a reputation kind into its string representation.
func (k ReputationKind) MarshalText() ([]byte, error) {
	if k > VerifiedLinked {
		return nil, fmt.Errorf("encointer: invalid reputation kind: %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a reputation kind from its string representation.
func (k *ReputationKind) UnmarshalText(text []byte) error {
	for _, kind := range []ReputationKind{Unverified, UnverifiedReputable, VerifiedUnlinked, VerifiedLinked} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("encointer: unknown reputation kind: '%s'", text)
}

// Reputation is the per-cycle reputation of an account.
type Reputation struct {
	Kind ReputationKind `json:"kind"`

	// LinkedCycle is the cycle the reputation was linked to, only set for
	// VerifiedLinked.
	LinkedCycle CeremonyIndex `json:"linked_cycle,omitempty"`
}

// IsVerified returns true iff the reputation carries verified attendance.
func (r Reputation) IsVerified() bool {
	return r.Kind == VerifiedUnlinked || r.Kind == VerifiedLinked
}

// ValidateBasic performs basic reputation validity checks.
func (r Reputation) ValidateBasic() error {
	switch r.Kind {
	case Unverified, UnverifiedReputable, VerifiedUnlinked:
		if r.LinkedCycle != 0 {
			return fmt.Errorf("encointer: linked cycle set for %s reputation", r.Kind)
		}
	case VerifiedLinked:
	default:
		return fmt.Errorf("encointer: invalid reputation kind: %d", r.Kind)
	}
	return nil
}

// String returns the string representation of a reputation.
func (r Reputation) String() string {
	if r.Kind == VerifiedLinked {
		return fmt.Sprintf("%s(%d)", r.Kind, r.LinkedCycle)
	}
	return r.Kind.String()
}

// ReputationWindow is the reputation history of an account, ordered from the
// most recent completed cycle backward.
type ReputationWindow []Reputation

// VerifiedCount returns the number of verified entries in the window.
func (w ReputationWindow) VerifiedCount() uint32 {
	var n uint32
	for _, r := range w {
		if r.IsVerified() {
			n++
		}
	}
	return n
}
