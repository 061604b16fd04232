// Package cidutil computes the content identifiers metatool works with: the
// hex SHA-256 "data hash" the MetaCore API keys files by, and the CIDv1
// (raw codec, sha2-256) used by the local mirror.
package cidutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DataHash returns the lowercase hex SHA-256 of data.
func DataHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DataHashReader hashes everything readable from r.
func DataHashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DataHashFile hashes the file at path without loading it into memory.
func DataHashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return DataHashReader(f)
}

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	id, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// CIDFromDataHash converts a hex data hash into the CID the mirror stores the
// same bytes under. No content is needed: both forms carry the same digest.
func CIDFromDataHash(dataHash string) (cid.Cid, error) {
	digest, err := hex.DecodeString(dataHash)
	if err != nil {
		return cid.Undef, fmt.Errorf("cidutil: data hash is not hex: %w", err)
	}
	if len(digest) != sha256.Size {
		return cid.Undef, fmt.Errorf("cidutil: data hash must be %d bytes, got %d", sha256.Size, len(digest))
	}
	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// DataHashFromCID is the inverse of CIDFromDataHash.
func DataHashFromCID(id cid.Cid) (string, error) {
	decoded, err := multihash.Decode(id.Hash())
	if err != nil {
		return "", err
	}
	if decoded.Code != multihash.SHA2_256 {
		return "", fmt.Errorf("cidutil: unsupported multihash %s", decoded.Name)
	}
	return hex.EncodeToString(decoded.Digest), nil
}
