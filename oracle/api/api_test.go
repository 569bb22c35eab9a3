package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/errors"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
)

func TestReturnValueRoundTrip(t *testing.T) {
	require := require.New(t)

	window := encointer.ReputationWindow{
		{Kind: encointer.VerifiedUnlinked},
		{Kind: encointer.Unverified},
		{Kind: encointer.VerifiedLinked, LinkedCycle: 12},
	}
	for _, v := range []*RpcReturnValue{
		NewOk(window),
		NewOk(&IssueCredentialResult{DefinitionID: "aa", AwardID: "bb", Confirmed: 2}),
		NewError(errors.WithContext(ErrInsufficientHistory, "cycle 2, window 5")),
		{Value: []byte{}, Status: StatusError},
	} {
		text := v.Hex()
		require.Equal("0x", text[:2], "envelope should be 0x prefixed")

		var decoded RpcReturnValue
		require.NoError(decoded.UnmarshalHex(text), "UnmarshalHex")
		require.Equal(v.Status, decoded.Status)
		require.False(decoded.DoWatch)
		require.EqualValues(v.Value, decoded.Value)

		// Decoding without the prefix works as well.
		require.NoError(decoded.UnmarshalHex(text[2:]), "UnmarshalHex without prefix")
	}

	var decodedWindow encointer.ReputationWindow
	require.NoError(NewOk(window).Result(&decodedWindow), "Result")
	require.Equal(window, decodedWindow)

	err := NewError(errors.WithContext(ErrNoReputation, "window of 3")).Result(&decodedWindow)
	var remote *RemoteError
	require.ErrorAs(err, &remote)
	require.Equal("no verified reputation: window of 3", remote.Message)

	var decoded RpcReturnValue
	require.Error(decoded.UnmarshalHex("0xzz"), "malformed hex")
	require.Error(decoded.UnmarshalHex("0xff"), "malformed cbor")
}

func TestParams(t *testing.T) {
	require := require.New(t)

	var account encointer.AccountID
	account[31] = 0x42
	rq := &IssueCredentialRequest{
		FetchReputationRequest: FetchReputationRequest{
			Community: encointer.CommunityIdentifier{
				Geohash: [5]byte{'s', 'q', 'm', '1', 'v'},
				Digest:  [4]byte{1, 2, 3, 4},
			},
			Cycle:      10,
			Account:    account,
			WindowSize: 3,
		},
		SubjectKey:   "npub1test",
		RelayAddress: "ws://localhost:7447",
	}

	params := rq.Params()
	require.Len(params, 6)
	decoded, err := DecodeIssueCredential(params)
	require.NoError(err, "DecodeIssueCredential")
	require.Equal(rq, decoded)

	rq.IssuerKey = "secondary"
	params = rq.Params()
	require.Len(params, 7)
	decoded, err = DecodeIssueCredential(params)
	require.NoError(err, "DecodeIssueCredential with issuer key")
	require.Equal("secondary", decoded.IssuerKey)

	fetch, err := DecodeFetchReputation(params[:4])
	require.NoError(err, "DecodeFetchReputation")
	require.Equal(&rq.FetchReputationRequest, fetch)

	for _, tc := range []struct {
		name   string
		params []string
		msg    string
	}{
		{"too few", params[:5], "wrong number of parameters: 5, expected: 6 to 7"},
		{"too many", append(append([]string{}, params...), "0x00"), "wrong number of parameters: 8, expected: 6 to 7"},
		{"malformed hex", append([]string{params[0], "0xnothex"}, params[2:]...), "parameter 1 (cycle): malformed hex"},
		{"wrong type", append([]string{params[0], EncodeParam("ten")}, params[2:]...), "parameter 1 (cycle)"},
		{"short account", append([]string{params[0], params[1], EncodeParam([]byte{1, 2, 3})}, params[3:]...), "parameter 2 (account)"},
	} {
		_, err = DecodeIssueCredential(tc.params)
		require.ErrorIs(err, ErrParamDecode, tc.name)
		require.Contains(err.Error(), tc.msg, tc.name)
	}

	err = CheckParamCount(params[:3], 4, 4)
	require.ErrorIs(err, ErrParamDecode)
	require.Equal("parameter decode error: wrong number of parameters: 3, expected: 4", err.Error())
}
