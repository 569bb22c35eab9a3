package api

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/encointer/personhood-oracle/common/cbor"
)

// Status is the status of a direct request.
type Status uint8

const (
	// StatusOk is the status of a successful request.
	StatusOk Status = 0
	// StatusError is the status of a failed request.
	StatusError Status = 1
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("[unknown status: %d]", uint8(s))
	}
}

// RpcReturnValue is the uniform response envelope.
type RpcReturnValue struct {
	// Value is the CBOR serialized result on success or the UTF-8 error
	// message on failure.
	Value []byte `json:"value"`
	// DoWatch is always false, there are no subscriptions.
	DoWatch bool `json:"do_watch"`
	// Status is the request status.
	Status Status `json:"status"`
}

// NewOk creates a successful envelope carrying the CBOR serialized result.
func NewOk(result interface{}) *RpcReturnValue {
	return &RpcReturnValue{
		Value:  cbor.Marshal(result),
		Status: StatusOk,
	}
}

// NewError creates a failed envelope carrying the error message.
func NewError(err error) *RpcReturnValue {
	return &RpcReturnValue{
		Value:  []byte(err.Error()),
		Status: StatusError,
	}
}

// Hex returns the 0x prefixed hex encoding of the CBOR serialized envelope.
func (v *RpcReturnValue) Hex() string {
	return "0x" + hex.EncodeToString(cbor.Marshal(v))
}

// UnmarshalHex decodes a hex encoded envelope.
func (v *RpcReturnValue) UnmarshalHex(text string) error {
	data, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
	if err != nil {
		return fmt.Errorf("oracle: malformed envelope: %w", err)
	}
	if err = cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("oracle: malformed envelope: %w", err)
	}
	return nil
}

// Result decodes the result of a successful envelope, or returns the remote
// error of a failed one.
func (v *RpcReturnValue) Result(dst interface{}) error {
	switch v.Status {
	case StatusOk:
		if err := cbor.Unmarshal(v.Value, dst); err != nil {
			return fmt.Errorf("oracle: malformed result: %w", err)
		}
		return nil
	case StatusError:
		return &RemoteError{Message: string(v.Value)}
	default:
		return fmt.Errorf("oracle: unknown envelope status: %s", v.Status)
	}
}

// RemoteError is an error reported by the oracle.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
