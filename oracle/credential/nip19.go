package credential

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"
)

// encodeKey returns the NIP-19 form of a 32 byte key.
func encodeKey(hrp string, key []byte) (string, error) {
	switch hrp {
	case SubjectKeyHRP:
		return nip19.EncodePublicKey(hex.EncodeToString(key))
	case SecretKeyHRP:
		return nip19.EncodePrivateKey(hex.EncodeToString(key))
	default:
		return "", fmt.Errorf("unsupported prefix '%s'", hrp)
	}
}

// decodeKey accepts a 32 byte key either in NIP-19 form with the given
// human readable part, or as plain hex.
func decodeKey(hrp, text string) ([]byte, error) {
	if !strings.HasPrefix(text, hrp+"1") {
		raw, err := hex.DecodeString(text)
		if err != nil || len(raw) != keySize {
			return nil, fmt.Errorf("neither %s nor %d byte hex", hrp, keySize)
		}
		return raw, nil
	}

	prefix, value, err := nip19.Decode(text)
	if err != nil {
		return nil, err
	}
	if prefix != hrp {
		return nil, fmt.Errorf("unexpected prefix '%s'", prefix)
	}
	keyHex, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected %s payload", prefix)
	}
	return hex.DecodeString(keyHex)
}
