// Package credential implements personhood credentials published as relay
// events: a badge definition and a badge award to an unlinkable subject key.
package credential

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/encointer/personhood-oracle/common/errors"
	"github.com/encointer/personhood-oracle/oracle/api"
)

const (
	// KindBadgeDefinition is the event kind of badge definitions.
	KindBadgeDefinition = 30009
	// KindBadgeAward is the event kind of badge awards.
	KindBadgeAward = 8

	// BadgeIdentifier is the unique identifier of the personhood badge.
	BadgeIdentifier = "likely_person"
	// BadgeName is the human readable name of the personhood badge.
	BadgeName = "Likely Person"

	// MaxTier is the highest confidence tier.
	MaxTier = 5

	badgeImage           = "https://parachains.info/images/parachains/1625163231_encointer_logo.png"
	badgeImageDimensions = "181x151"
)

var tierNames = [MaxTier + 1]string{
	"no",
	"low",
	"moderate",
	"good",
	"high",
	"very high",
}

// Tier returns the confidence tier of the given verified count.
func Tier(verifiedCount uint32) int {
	if verifiedCount > MaxTier {
		return MaxTier
	}
	return int(verifiedCount)
}

// Description returns the human readable description of a confidence tier.
func Description(tier int) string {
	return fmt.Sprintf("The holder is very likely a unique human, with %s confidence (level %d of %d) based on recent ceremony attendance.",
		tierNames[tier],
		tier,
		MaxTier,
	)
}

// Definition is a signed badge definition event.
type Definition struct {
	nostr.Event
}

// Address returns the parameterized replaceable event address of the
// definition.
func (d *Definition) Address() string {
	return fmt.Sprintf("%d:%s:%s", KindBadgeDefinition, d.PubKey, BadgeIdentifier)
}

// Award is a signed badge award event.
type Award struct {
	nostr.Event
}

// Clock is a trusted time source.
type Clock interface {
	// Now returns the current time in seconds since the unix epoch.
	Now() int64
}

// Issuer issues credentials.
type Issuer struct {
	clock Clock
}

// Issue builds and signs a fresh badge definition for the confidence tier of
// the given verified count and an award of it to the subject key.
func (is *Issuer) Issue(verifiedCount uint32, subject SubjectKey, key *SigningKey) (*Definition, *Award, error) {
	tier := Tier(verifiedCount)
	createdAt := nostr.Timestamp(is.clock.Now())

	def := &Definition{nostr.Event{
		CreatedAt: createdAt,
		Kind:      KindBadgeDefinition,
		Tags: nostr.Tags{
			{"d", BadgeIdentifier},
			{"name", BadgeName},
			{"description", Description(tier)},
			{"image", badgeImage, badgeImageDimensions},
			{"thumb", badgeImage, badgeImageDimensions},
			{"thumb", badgeImage},
		},
	}}
	if err := key.sign(&def.Event); err != nil {
		return nil, nil, errors.WithContext(api.ErrSigning, fmt.Sprintf("definition: %s", err))
	}

	award := &Award{nostr.Event{
		CreatedAt: createdAt,
		Kind:      KindBadgeAward,
		Tags: nostr.Tags{
			{"a", def.Address()},
			{"p", subject.Hex()},
		},
	}}
	if err := key.sign(&award.Event); err != nil {
		return nil, nil, errors.WithContext(api.ErrSigning, fmt.Sprintf("award: %s", err))
	}

	return def, award, nil
}

// NewIssuer creates a new credential issuer using the given time source.
func NewIssuer(clock Clock) *Issuer {
	return &Issuer{
		clock: clock,
	}
}
