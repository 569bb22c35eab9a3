package protocol

import (
	"fmt"
	"reflect"

	"github.com/encointer/personhood-oracle/common/crypto/hash"
	"github.com/encointer/personhood-oracle/common/version"
	consensus "github.com/encointer/personhood-oracle/consensus/api"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
	storage "github.com/encointer/personhood-oracle/storage/api"
)

// Changing any structure below changes the wire format, bump
// version.RuntimeHostProtocol accordingly.

// MessageType distinguishes requests from responses.
type MessageType uint8

const (
	// MessageInvalid is the zero value and never sent.
	MessageInvalid MessageType = iota
	// MessageRequest is a request expecting a response with the same ID.
	MessageRequest
	// MessageResponse answers the request with the same ID.
	MessageResponse
)

func (m MessageType) String() string {
	switch m {
	case MessageRequest:
		return "request"
	case MessageResponse:
		return "response"
	default:
		return fmt.Sprintf("[malformed: %d]", m)
	}
}

// Message is a single protocol frame.
type Message struct {
	ID          uint64      `json:"id"`
	MessageType MessageType `json:"message_type"`
	Body        Body        `json:"body"`
}

// Body is a protocol message body.
type Body struct {
	Empty *Empty `json:",omitempty"`
	Error *Error `json:",omitempty"`

	// Enclave interface.
	RuntimeInfoRequest           *RuntimeInfoRequest           `json:",omitempty"`
	RuntimeInfoResponse          *RuntimeInfoResponse          `json:",omitempty"`
	RuntimePingRequest           *Empty                        `json:",omitempty"`
	RuntimeRPCCallRequest        *RuntimeRPCCallRequest        `json:",omitempty"`
	RuntimeRPCCallResponse       *RuntimeRPCCallResponse       `json:",omitempty"`
	RuntimeConsensusSyncRequest  *RuntimeConsensusSyncRequest  `json:",omitempty"`
	RuntimeConsensusSyncResponse *RuntimeConsensusSyncResponse `json:",omitempty"`
	RuntimeCurrentCycleRequest   *Empty                        `json:",omitempty"`
	RuntimeCurrentCycleResponse  *RuntimeCurrentCycleResponse  `json:",omitempty"`

	// Host interface.
	HostStorageSyncRequest  *HostStorageSyncRequest  `json:",omitempty"`
	HostStorageSyncResponse *HostStorageSyncResponse `json:",omitempty"`
}

// Type returns the name of the body's first set member, which is how
// metrics and logs label calls.
func (body Body) Type() string {
	v := reflect.ValueOf(body)
	for i := 0; i < v.NumField(); i++ {
		if !v.Field(i).IsNil() {
			return v.Type().Field(i).Name
		}
	}
	return ""
}

// Empty is an empty message body.
type Empty struct{}

// Error carries a coded error across the connection.
type Error struct {
	Module  string `json:"module,omitempty"`
	Code    uint32 `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e Error) String() string {
	return fmt.Sprintf("%s/%d: %s", e.Module, e.Code, e.Message)
}

// RuntimeInfoRequest is an enclave info request message body.
type RuntimeInfoRequest struct {
	// StorageBackend is the name of the storage backend the host serves.
	StorageBackend string `json:"storage_backend"`
}

// RuntimeInfoResponse is an enclave info response message body.
type RuntimeInfoResponse struct {
	// ProtocolVersion is the enclave's supported host protocol version.
	ProtocolVersion version.Version `json:"protocol_version"`

	// SoftwareVersion is the enclave's software version.
	SoftwareVersion string `json:"software_version"`

	// LatestHeight is the height of the latest header verified by the
	// enclave's light client.
	LatestHeight uint64 `json:"latest_height"`

	// IssuerKey is the public key of the default credential issuer key.
	IssuerKey string `json:"issuer_key"`

	// Methods are the RPC methods the enclave serves.
	Methods []string `json:"methods"`
}

// RuntimeRPCCallRequest is an enclave RPC call request message body.
type RuntimeRPCCallRequest struct {
	// Request is the CBOR-serialized RPC request.
	Request []byte `json:"request"`
}

// RuntimeRPCCallResponse is an enclave RPC call response message body.
type RuntimeRPCCallResponse struct {
	// Response is the CBOR-serialized RPC return value.
	Response []byte `json:"response"`
}

// RuntimeConsensusSyncRequest is an enclave consensus sync request message body.
type RuntimeConsensusSyncRequest struct {
	LightBlock consensus.LightBlock `json:"light_block"`
}

// RuntimeConsensusSyncResponse is an enclave consensus sync response message body.
type RuntimeConsensusSyncResponse struct {
	// Height is the height of the latest verified header.
	Height uint64 `json:"height"`
	// HeaderHash is the hash of the latest verified header.
	HeaderHash hash.Hash `json:"header_hash"`
}

// RuntimeCurrentCycleResponse is an enclave current cycle response message body.
type RuntimeCurrentCycleResponse struct {
	// Height is the height of the header the cycle was read at.
	Height uint64 `json:"height"`
	// CurrentCycle is the verified on-chain current ceremony index.
	CurrentCycle encointer.CeremonyIndex `json:"current_cycle"`
}

// HostStorageSyncRequest is a host storage read request message body.
type HostStorageSyncRequest struct {
	storage.ReadRequest
}

// HostStorageSyncResponse is a host storage read response message body.
type HostStorageSyncResponse struct {
	storage.ReadResponse
}
