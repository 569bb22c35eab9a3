package api

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// SS58GenericPrefix is the generic substrate address format.
	SS58GenericPrefix = 42

	ss58ChecksumSize = 2
)

var ss58Context = []byte("SS58PRE")

func ss58Checksum(data []byte) []byte {
	h, _ := blake2b.New512(nil)
	_, _ = h.Write(ss58Context)
	_, _ = h.Write(data)
	return h.Sum(nil)[:ss58ChecksumSize]
}

// SS58 encodes the account identifier as an SS58 address with the given
// network prefix.
func (a AccountID) SS58(prefix uint16) string {
	var data []byte
	switch {
	case prefix < 64:
		data = []byte{byte(prefix)}
	default:
		// Two byte "full" address type encoding.
		data = []byte{
			byte(((prefix & 0x00fc) >> 2) | 0x40),
			byte((prefix >> 8) | ((prefix & 0x0003) << 6)),
		}
	}
	data = append(data, a[:]...)
	data = append(data, ss58Checksum(data)...)
	return base58.Encode(data)
}

// UnmarshalSS58 decodes an SS58 address of any network prefix.
func (a *AccountID) UnmarshalSS58(address string) error {
	data, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedAccountID, err)
	}

	var prefixLen int
	switch {
	case len(data) == 1+AccountIDSize+ss58ChecksumSize && data[0] < 64:
		prefixLen = 1
	case len(data) == 2+AccountIDSize+ss58ChecksumSize && data[0]&0xc0 == 0x40:
		prefixLen = 2
	default:
		return fmt.Errorf("%w: unsupported ss58 address", ErrMalformedAccountID)
	}

	body := data[:len(data)-ss58ChecksumSize]
	if !bytes.Equal(ss58Checksum(body), data[len(body):]) {
		return fmt.Errorf("%w: invalid ss58 checksum", ErrMalformedAccountID)
	}
	return a.UnmarshalBinary(body[prefixLen:])
}
