package keys

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

// TestnetVersion is the address version byte MetaCore nodes accept.
const TestnetVersion byte = 0x6f

const checksumSize = 4

// ErrBadAddress is returned for addresses that fail base58check decoding.
var ErrBadAddress = errors.New("keys: malformed address")

// Hash160 returns ripemd160(sha256(b)).
func Hash160(b []byte) []byte {
	s := sha256.Sum256(b)
	h := ripemd160.New()
	_, _ = h.Write(s[:])
	return h.Sum(nil)
}

// AddressFromPublicKey encodes pub as a base58check address.
func AddressFromPublicKey(version byte, pub []byte) (string, error) {
	if len(pub) == 0 {
		return "", errors.New("keys: empty public key")
	}
	payload := make([]byte, 0, 1+ripemd160.Size+checksumSize)
	payload = append(payload, version)
	payload = append(payload, Hash160(pub)...)
	payload = append(payload, checksum(payload)...)
	return base58.Encode(payload), nil
}

// DecodeAddress validates addr and returns its version byte and hash160.
func DecodeAddress(addr string) (version byte, hash []byte, err error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	if len(raw) != 1+ripemd160.Size+checksumSize {
		return 0, nil, fmt.Errorf("%w: length %d", ErrBadAddress, len(raw))
	}
	body, sum := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	if !bytes.Equal(checksum(body), sum) {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", ErrBadAddress)
	}
	return body[0], body[1:], nil
}

func checksum(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:checksumSize]
}
