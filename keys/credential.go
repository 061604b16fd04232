package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// SeedSize is the length of every signing key handled by this package.
const SeedSize = ed25519.SeedSize

// Scheme names a signature scheme.
type Scheme string

const (
	SchemeEd25519    Scheme = "ed25519"
	SchemeDilithium3 Scheme = "dilithium3"
)

// Provider derives addresses and signatures from a raw key.
type Provider interface {
	Scheme() Scheme
	Address(key []byte) (string, error)
	Sign(key []byte, message string) (string, error)
}

// ProviderFor returns the provider registered for a scheme name. The empty
// name selects Ed25519.
func ProviderFor(name string) (Provider, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(name))) {
	case "", SchemeEd25519:
		return Ed25519Provider{}, nil
	case SchemeDilithium3:
		return Dilithium3Provider{HashAlg: "sha3-256"}, nil
	default:
		return nil, fmt.Errorf("keys: unknown signature scheme %q", name)
	}
}

// Ed25519Provider signs base64(ed25519(sha256(message))).
type Ed25519Provider struct{}

func (Ed25519Provider) Scheme() Scheme { return SchemeEd25519 }

func (Ed25519Provider) Address(key []byte) (string, error) {
	if err := checkSeed(key); err != nil {
		return "", err
	}
	pub := ed25519.NewKeyFromSeed(key).Public().(ed25519.PublicKey)
	return AddressFromPublicKey(TestnetVersion, pub)
}

func (Ed25519Provider) Sign(key []byte, message string) (string, error) {
	if err := checkSeed(key); err != nil {
		return "", err
	}
	return SignEd25519SHA256([]byte(message), ed25519.NewKeyFromSeed(key)), nil
}

// Dilithium3Provider signs with CRYSTALS-Dilithium mode 3 over HashAlg(message).
type Dilithium3Provider struct {
	// HashAlg is one of sha256, sha512, sha3-256. Empty means sha3-256.
	HashAlg string
}

func (Dilithium3Provider) Scheme() Scheme { return SchemeDilithium3 }

func (p Dilithium3Provider) Address(key []byte) (string, error) {
	pub, _, err := dilithiumKeys(key)
	if err != nil {
		return "", err
	}
	return AddressFromPublicKey(TestnetVersion, pub.Bytes())
}

func (p Dilithium3Provider) Sign(key []byte, message string) (string, error) {
	_, priv, err := dilithiumKeys(key)
	if err != nil {
		return "", err
	}
	return SignDilithium3([]byte(message), p.hashAlg(), priv)
}

func (p Dilithium3Provider) hashAlg() string {
	if p.HashAlg == "" {
		return "sha3-256"
	}
	return p.HashAlg
}

func dilithiumKeys(key []byte) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	if err := checkSeed(key); err != nil {
		return nil, nil, err
	}
	var seed [mode3.SeedSize]byte
	copy(seed[:], key)
	pub, priv := mode3.NewKeyFromSeed(&seed)
	return pub, priv, nil
}

func checkSeed(key []byte) error {
	if len(key) != SeedSize {
		return fmt.Errorf("keys: signing key must be %d bytes, got %d", SeedSize, len(key))
	}
	return nil
}

// Credential is the signing identity attached to authenticated requests.
// The zero value carries no identity.
type Credential struct {
	Key      []byte
	Provider Provider
}

// ErrIncompleteCredential reports a credential holding a key without a
// provider, or a provider without a key.
var ErrIncompleteCredential = errors.New("keys: key and provider must be supplied together")

// NewCredential creates a credential with a fresh random key.
func NewCredential(p Provider, random io.Reader) (Credential, error) {
	if p == nil {
		return Credential{}, errors.New("keys: provider is required")
	}
	if random == nil {
		random = rand.Reader
	}
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(random, seed); err != nil {
		return Credential{}, fmt.Errorf("keys: generate seed: %w", err)
	}
	return Credential{Key: seed, Provider: p}, nil
}

// IsZero reports whether neither half of the credential is set.
func (c Credential) IsZero() bool { return len(c.Key) == 0 && c.Provider == nil }

// Complete reports whether both halves are set.
func (c Credential) Complete() bool { return len(c.Key) > 0 && c.Provider != nil }

// Validate accepts a complete or an empty credential.
func (c Credential) Validate() error {
	if c.IsZero() || c.Complete() {
		return nil
	}
	return ErrIncompleteCredential
}

// Address returns the sender address for the credential.
func (c Credential) Address() (string, error) {
	if !c.Complete() {
		return "", ErrIncompleteCredential
	}
	return c.Provider.Address(c.Key)
}

// Sign signs message (typically a hex content hash).
func (c Credential) Sign(message string) (string, error) {
	if !c.Complete() {
		return "", ErrIncompleteCredential
	}
	return c.Provider.Sign(c.Key, message)
}
