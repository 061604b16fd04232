package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ParseSeedHex decodes a 64-character hex seed. A leading "0x" is accepted.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

// LoadSeedFile reads a hex seed from a key file. The file is only read.
func LoadSeedFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// ErrNoSeed is returned by LoadSeed when no source was given.
var ErrNoSeed = errors.New("keys: no seed source provided")

// LoadSeed resolves a seed from, in order, a hex string or a key file.
func LoadSeed(seedHex, keyFile string) ([]byte, error) {
	if seedHex != "" && keyFile != "" {
		return nil, errors.New("keys: use either a seed or a key file, not both")
	}
	if seedHex != "" {
		return ParseSeedHex(seedHex)
	}
	if keyFile != "" {
		return LoadSeedFile(keyFile)
	}
	return nil, ErrNoSeed
}
