// Package api implements the storage read boundary between the enclave and
// the untrusted host.
package api

import (
	"context"

	"github.com/encointer/personhood-oracle/common/errors"
	"github.com/encointer/personhood-oracle/storage/proof"
)

// ModuleName is the storage module name.
const ModuleName = "storage"

const (
	// BackendDirect is the name of the backend reading from a local chain
	// store.
	BackendDirect = "direct"
	// BackendProxied is the name of the backend reading through the untrusted
	// host.
	BackendProxied = "proxied"

	// MaxReadKeys is the maximum number of keys in a single read request.
	MaxReadKeys = 128
)

var (
	// ErrNoVersion is the error returned when the requested state version
	// is not available.
	ErrNoVersion = errors.New(ModuleName, 1, "storage: version not found")

	// ErrTooManyKeys is the error returned when a read request has too many
	// keys.
	ErrTooManyKeys = errors.New(ModuleName, 2, "storage: too many keys in request")

	// ErrMalformedResponse is the error returned when a read response does
	// not match the request.
	ErrMalformedResponse = errors.New(ModuleName, 3, "storage: malformed read response")
)

// ReadRequest is a request to read keys at a given state version.
type ReadRequest struct {
	// Height is the height of the header whose state should be read.
	Height uint64 `json:"height"`
	// Keys are the storage keys to read.
	Keys [][]byte `json:"keys"`
}

// Entry is a single read result.
type Entry struct {
	Key []byte `json:"key"`
	// Value is the raw value, nil when the key is absent.
	Value []byte `json:"value,omitempty"`
	// Proof is the proof of inclusion or absence of the key.
	Proof *proof.Proof `json:"proof,omitempty"`
}

// ReadResponse is the response to a read request, one entry per requested
// key in request order.
type ReadResponse struct {
	Entries []Entry `json:"entries"`
}

// Backend is a storage backend.
//
// Warning: values returned by a backend are untrusted and must be verified
// against a trusted state root before use.
type Backend interface {
	// Read reads the requested keys.
	Read(ctx context.Context, request *ReadRequest) (*ReadResponse, error)
}
