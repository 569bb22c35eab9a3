// Package api defines the personhood oracle request/response interface.
package api

import (
	"github.com/encointer/personhood-oracle/common/errors"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
)

// ModuleName is the oracle module name.
const ModuleName = "oracle"

// Method names.
const (
	// MethodFetchReputation fetches the verified reputation window of an
	// account.
	MethodFetchReputation = "personhoodoracle_fetchReputation"
	// MethodIssueCredential issues a personhood credential to an external
	// subject key and publishes it to a relay.
	MethodIssueCredential = "personhoodoracle_issueCredential"
	// MethodCurrentCycle returns the verified current ceremony index.
	MethodCurrentCycle = "personhoodoracle_currentCycle"
	// MethodRPCMethods lists all supported methods.
	MethodRPCMethods = "rpc_methods"
	// MethodSystemHealth reports the oracle health.
	MethodSystemHealth = "system_health"
)

var (
	// ErrParamDecode is the error returned when request parameters cannot be
	// decoded.
	ErrParamDecode = errors.New(ModuleName, 1, "parameter decode error")
	// ErrInsufficientHistory is the error returned when the requested window
	// reaches before the first cycle.
	ErrInsufficientHistory = errors.New(ModuleName, 2, "insufficient history")
	// ErrStorageRead is the error returned when chain state cannot be
	// obtained from the host.
	ErrStorageRead = errors.New(ModuleName, 3, "storage read error")
	// ErrProofVerification is the error returned when a storage proof does
	// not verify against the trusted header.
	ErrProofVerification = errors.New(ModuleName, 4, "proof verification failure")
	// ErrNoReputation is the error returned when an account has no verified
	// reputation in the requested window.
	ErrNoReputation = errors.New(ModuleName, 5, "no verified reputation")
	// ErrSigning is the error returned when credential signing fails.
	ErrSigning = errors.New(ModuleName, 6, "signing error")
	// ErrRelayConnect is the error returned when the relay cannot be reached.
	ErrRelayConnect = errors.New(ModuleName, 7, "relay connect failure")
	// ErrRelaySend is the error returned when sending to the relay fails.
	ErrRelaySend = errors.New(ModuleName, 8, "relay send failure")
	// ErrUnknownMethod is the error returned for unsupported methods.
	ErrUnknownMethod = errors.New(ModuleName, 9, "unknown method")
	// ErrInternal is the error returned when a handler fails unexpectedly.
	ErrInternal = errors.New(ModuleName, 10, "internal error")
	// ErrCycleAhead is the error returned when the requested cycle is ahead
	// of the verified on-chain current cycle.
	ErrCycleAhead = errors.New(ModuleName, 11, "cycle ahead of chain")
)

// RpcRequest is a direct invocation request.
type RpcRequest struct {
	// Method is the method name.
	Method string `json:"method"`
	// Params are the hex encoded canonical CBOR serialized parameters.
	Params []string `json:"params"`
}

// FetchReputationRequest are the parameters of MethodFetchReputation.
type FetchReputationRequest struct {
	Community  encointer.CommunityIdentifier
	Cycle      encointer.CeremonyIndex
	Account    encointer.AccountID
	WindowSize uint32
}

// Params returns the wire encoded parameters.
func (r *FetchReputationRequest) Params() []string {
	return EncodeParams(r.Community, r.Cycle, r.Account, r.WindowSize)
}

// IssueCredentialRequest are the parameters of MethodIssueCredential.
type IssueCredentialRequest struct {
	FetchReputationRequest

	// SubjectKey is the external subject key in npub or hex form.
	SubjectKey string
	// RelayAddress is the websocket address of the relay.
	RelayAddress string
	// IssuerKey optionally names the issuer key to sign with.
	IssuerKey string
}

// Params returns the wire encoded parameters.
func (r *IssueCredentialRequest) Params() []string {
	params := append(r.FetchReputationRequest.Params(), EncodeParams(r.SubjectKey, r.RelayAddress)...)
	if r.IssuerKey != "" {
		params = append(params, EncodeParam(r.IssuerKey))
	}
	return params
}

// IssueCredentialResult is the result of MethodIssueCredential.
type IssueCredentialResult struct {
	// DefinitionID is the identifier of the published definition event.
	DefinitionID string `json:"definition_id"`
	// AwardID is the identifier of the published award event.
	AwardID string `json:"award_id"`
	// IssuerKey is the public key of the issuer.
	IssuerKey string `json:"issuer_key"`
	// Confirmed is the number of events confirmed written to the relay.
	Confirmed int `json:"confirmed"`
}

// HealthStatus is the result of MethodSystemHealth.
type HealthStatus struct {
	// Height is the latest trusted header height.
	Height uint64 `json:"height"`
	// Timestamp is the latest trusted header timestamp.
	Timestamp int64 `json:"timestamp"`
}
