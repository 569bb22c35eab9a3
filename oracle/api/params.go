package api

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/errors"
)

// EncodeParam encodes a single request parameter.
func EncodeParam(v interface{}) string {
	return "0x" + hex.EncodeToString(cbor.Marshal(v))
}

// EncodeParams encodes request parameters in order.
func EncodeParams(vs ...interface{}) []string {
	params := make([]string, 0, len(vs))
	for _, v := range vs {
		params = append(params, EncodeParam(v))
	}
	return params
}

// CheckParamCount verifies the number of parameters is within bounds.
func CheckParamCount(params []string, min, max int) error {
	if n := len(params); n < min || n > max {
		expected := fmt.Sprintf("%d", min)
		if min != max {
			expected = fmt.Sprintf("%d to %d", min, max)
		}
		return errors.WithContext(ErrParamDecode, fmt.Sprintf("wrong number of parameters: %d, expected: %s", n, expected))
	}
	return nil
}

// DecodeParam decodes the idx-th request parameter into dst.
func DecodeParam(params []string, idx int, name string, dst interface{}) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(params[idx], "0x"))
	if err != nil {
		return errors.WithContext(ErrParamDecode, fmt.Sprintf("parameter %d (%s): malformed hex: %s", idx, name, err))
	}
	if err = cbor.UnmarshalCanonical(raw, dst); err != nil {
		return errors.WithContext(ErrParamDecode, fmt.Sprintf("parameter %d (%s): %s", idx, name, err))
	}
	return nil
}

// DecodeFetchReputation decodes the common reputation query parameters.
func DecodeFetchReputation(params []string) (*FetchReputationRequest, error) {
	if len(params) < 4 {
		return nil, errors.WithContext(ErrParamDecode, fmt.Sprintf("wrong number of parameters: %d, expected: 4", len(params)))
	}

	var rq FetchReputationRequest
	if err := DecodeParam(params, 0, "community", &rq.Community); err != nil {
		return nil, err
	}
	if err := DecodeParam(params, 1, "cycle", &rq.Cycle); err != nil {
		return nil, err
	}
	if err := DecodeParam(params, 2, "account", &rq.Account); err != nil {
		return nil, err
	}
	if err := DecodeParam(params, 3, "window_size", &rq.WindowSize); err != nil {
		return nil, err
	}
	return &rq, nil
}

// DecodeIssueCredential decodes the credential issuance parameters.
func DecodeIssueCredential(params []string) (*IssueCredentialRequest, error) {
	if err := CheckParamCount(params, 6, 7); err != nil {
		return nil, err
	}

	fetch, err := DecodeFetchReputation(params)
	if err != nil {
		return nil, err
	}
	rq := IssueCredentialRequest{FetchReputationRequest: *fetch}
	if err = DecodeParam(params, 4, "subject_key", &rq.SubjectKey); err != nil {
		return nil, err
	}
	if err = DecodeParam(params, 5, "relay_address", &rq.RelayAddress); err != nil {
		return nil, err
	}
	if len(params) == 7 {
		if err = DecodeParam(params, 6, "issuer_key", &rq.IssuerKey); err != nil {
			return nil, err
		}
	}
	return &rq, nil
}
