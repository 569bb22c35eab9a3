package credential

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/crypto/signature/signers/memory"
)

const (
	testNpub      = "npub10elfcs4fr0l0r8af98jlmgdh9c8tcxjvz9qkw038js35mp4dma8qzvjptg"
	testNpubHex   = "7e7e9c42a91bfef19fa929e5fda1b72e0ebc1a4c1141673e2794234d86addf4e"
	testNsec      = "nsec1vl029mgpspedva04g90vltkh6fvh240zqtv9k0t9af8935ke9laqsnlfe5"
	testNsecHex   = "67dea2ed018072d675f5415ecfaed7d2597555e202d85b3d65ea4e58d2d92ffa"
	testTimestamp = 1_700_000_123
)

type fixedClock int64

func (c fixedClock) Now() int64 {
	return int64(c)
}

func TestSubjectKey(t *testing.T) {
	require := require.New(t)

	var fromBech32, fromHex SubjectKey
	require.NoError(fromBech32.UnmarshalText([]byte(testNpub)), "UnmarshalText npub")
	require.NoError(fromHex.UnmarshalText([]byte(testNpubHex)), "UnmarshalText hex")
	require.Equal(fromBech32, fromHex)
	require.Equal(testNpubHex, fromHex.Hex())
	require.Equal(testNpub, fromHex.String())

	var k SubjectKey
	require.Error(k.UnmarshalText([]byte(testNsec)), "secret key is not a subject key")
	require.Error(k.UnmarshalText([]byte(testNpubHex[:62])), "short hex")
	require.Error(k.UnmarshalText([]byte("npub1qqqqqqqq")), "malformed bech32")
	// The field prime is not a valid x coordinate.
	require.Error(k.UnmarshalText([]byte("fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f")), "invalid point")
}

func TestSigningKey(t *testing.T) {
	require := require.New(t)

	fromBech32, err := NewSigningKey(testNsec)
	require.NoError(err, "NewSigningKey nsec")
	fromHex, err := NewSigningKey(testNsecHex)
	require.NoError(err, "NewSigningKey hex")
	require.Equal(fromBech32.Public(), fromHex.Public())

	_, err = NewSigningKey("0000000000000000000000000000000000000000000000000000000000000000")
	require.Error(err, "zero secret key")
	_, err = NewSigningKey("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")
	require.Error(err, "secret key equal to the group order")
	_, err = NewSigningKey(testNpub)
	require.Error(err, "public key is not a secret key")

	signer := memory.NewTestSigner("credential test identity")
	derived1, err := DeriveSigningKey(signer, "default")
	require.NoError(err, "DeriveSigningKey")
	derived2, err := DeriveSigningKey(signer, "default")
	require.NoError(err, "DeriveSigningKey")
	require.Equal(derived1.Public(), derived2.Public(), "derivation should be deterministic")

	other, err := DeriveSigningKey(signer, "secondary")
	require.NoError(err, "DeriveSigningKey")
	require.NotEqual(derived1.Public(), other.Public(), "labels should separate keys")

	otherSigner, err := DeriveSigningKey(memory.NewTestSigner("credential test other identity"), "default")
	require.NoError(err, "DeriveSigningKey")
	require.NotEqual(derived1.Public(), otherSigner.Public(), "identities should separate keys")

	kr, err := NewKeyring(derived1, map[string]*SigningKey{"secondary": other, "imported": fromHex})
	require.NoError(err, "NewKeyring")
	key, ok := kr.Get("")
	require.True(ok)
	require.Equal(derived1, key)
	key, ok = kr.Get("secondary")
	require.True(ok)
	require.Equal(other, key)
	_, ok = kr.Get("missing")
	require.False(ok)
	require.Equal([]string{"imported", "secondary"}, kr.Names())

	_, err = NewKeyring(nil, nil)
	require.Error(err, "NewKeyring without default key")
	_, err = NewKeyring(derived1, map[string]*SigningKey{"": other})
	require.Error(err, "NewKeyring with empty name")
}

func TestIssue(t *testing.T) {
	require := require.New(t)

	var subject SubjectKey
	require.NoError(subject.UnmarshalText([]byte(testNpub)))
	key, err := NewSigningKey(testNsec)
	require.NoError(err, "NewSigningKey")

	issuer := NewIssuer(fixedClock(testTimestamp))
	def, award, err := issuer.Issue(2, subject, key)
	require.NoError(err, "Issue")

	require.Equal(KindBadgeDefinition, def.Kind)
	require.EqualValues(testTimestamp, def.CreatedAt)
	require.Equal(key.Public(), def.PubKey)
	require.Equal(def.GetID(), def.ID, "definition id should be the event hash")
	ok, err := def.CheckSignature()
	require.NoError(err, "CheckSignature definition")
	require.True(ok, "definition signature should verify")
	require.Equal(BadgeIdentifier, def.Tags.GetFirst([]string{"d"}).Value())
	require.Equal(Description(2), def.Tags.GetFirst([]string{"description"}).Value())
	require.Len(def.Tags.GetAll([]string{"thumb"}), 2)

	require.Equal(KindBadgeAward, award.Kind)
	require.EqualValues(testTimestamp, award.CreatedAt)
	require.Equal(award.GetID(), award.ID, "award id should be the event hash")
	ok, err = award.CheckSignature()
	require.NoError(err, "CheckSignature award")
	require.True(ok, "award signature should verify")
	require.Equal("30009:"+key.Public()+":likely_person", award.Tags.GetFirst([]string{"a"}).Value())
	recipients := award.Tags.GetAll([]string{"p"})
	require.Len(recipients, 1, "exactly one recipient")
	require.Equal(testNpubHex, recipients[0].Value())

	// Tampering invalidates the signature.
	award.Tags[1][1] = key.Public()
	ok, _ = award.CheckSignature()
	require.False(ok, "tampered award must not verify")

	// Fresh events per issuance.
	def2, _, err := issuer.Issue(2, subject, key)
	require.NoError(err, "Issue")
	require.NotSame(def, def2)

	// Content depends only on the tier.
	def5, _, err := issuer.Issue(5, subject, key)
	require.NoError(err, "Issue")
	def9, _, err := issuer.Issue(9, subject, key)
	require.NoError(err, "Issue")
	require.Equal(def5.ID, def9.ID, "verified counts above the top tier should be indistinguishable")
	require.NotEqual(def.ID, def5.ID)

	_, err = json.Marshal(def)
	require.NoError(err, "definitions should serialize as events")
}

func TestTier(t *testing.T) {
	require := require.New(t)

	for count, tier := range map[uint32]int{0: 0, 1: 1, 3: 3, 5: 5, 6: 5, 4294967295: 5} {
		require.Equal(tier, Tier(count), "Tier(%d)", count)
	}
	require.Contains(Description(0), "level 0 of 5")
	require.Contains(Description(MaxTier), "very high")
}
