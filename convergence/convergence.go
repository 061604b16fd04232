// Package convergence implements convergent file encryption: the key is
// derived from the plaintext itself, so identical files encrypt to identical
// ciphertexts and can be deduplicated by the storage node.
//
// The cipher is AES in CTR mode with a zero IV. Reusing the IV is safe here
// only because every key is bound to exactly one plaintext.
package convergence

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
)

// KeySize is the size of keys produced by EncryptFile (AES-256).
const KeySize = sha256.Size

const chunkSize = 64 * 1024

// ErrKeySize is returned for keys that are not 16, 24 or 32 bytes.
var ErrKeySize = errors.New("convergence: key must be 16, 24 or 32 bytes")

// DeriveKey computes the convergence key of r's content. With a non-empty
// secret the key is HMAC-SHA256(secret, content); otherwise SHA-256(content).
// A secret limits deduplication to holders of the same secret.
func DeriveKey(r io.Reader, secret []byte) ([]byte, error) {
	var h hash.Hash
	if len(secret) > 0 {
		h = hmac.New(sha256.New, secret)
	} else {
		h = sha256.New()
	}
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// EncryptFile encrypts the file at path in place and returns the key.
func EncryptFile(path string, secret []byte) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	key, err := DeriveKey(f, secret)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("convergence: derive key: %w", err)
	}
	if err := transformFile(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DecryptFile decrypts the file at path in place with key.
func DecryptFile(path string, key []byte) error {
	return transformFile(path, key)
}

// Encrypt returns the ciphertext of data and its key.
func Encrypt(data, secret []byte) (ciphertext, key []byte, err error) {
	key, err = DeriveKey(bytes.NewReader(data), secret)
	if err != nil {
		return nil, nil, err
	}
	out, err := XOR(data, key)
	return out, key, err
}

// XOR applies the keystream for key to data. Encryption and decryption are
// the same operation.
func XOR(data, key []byte) ([]byte, error) {
	stream, err := newStream(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

// ParseKeyHex decodes a hex key and checks its size.
func ParseKeyHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("convergence: key is not hex: %w", err)
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

func newStream(key []byte) (cipher.Stream, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	return cipher.NewCTR(block, iv), nil
}

func checkKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%w, got %d", ErrKeySize, len(key))
	}
}

// transformFile rewrites the file chunk by chunk with the keystream applied.
func transformFile(path string, key []byte) error {
	stream, err := newStream(key)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	var off int64
	for {
		n, rerr := f.ReadAt(buf, off)
		if n > 0 {
			stream.XORKeyStream(buf[:n], buf[:n])
			if _, err := f.WriteAt(buf[:n], off); err != nil {
				return fmt.Errorf("convergence: write %s: %w", path, err)
			}
			off += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("convergence: read %s: %w", path, rerr)
		}
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return f.Close()
}
