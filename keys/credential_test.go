package keys

import (
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

func TestProviderFor(t *testing.T) {
	for name, want := range map[string]Scheme{
		"":            SchemeEd25519,
		"ed25519":     SchemeEd25519,
		" Dilithium3": SchemeDilithium3,
	} {
		p, err := ProviderFor(name)
		if err != nil {
			t.Fatalf("ProviderFor(%q): %v", name, err)
		}
		if p.Scheme() != want {
			t.Fatalf("ProviderFor(%q): got %s want %s", name, p.Scheme(), want)
		}
	}
	if _, err := ProviderFor("secp256k1"); err == nil {
		t.Fatalf("expected error for unknown scheme")
	}
}

func TestCredentialEd25519SignsHash(t *testing.T) {
	cred := Credential{Key: testSeed(), Provider: Ed25519Provider{}}
	addr, err := cred.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	version, hash, err := DecodeAddress(addr)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if version != TestnetVersion {
		t.Fatalf("version: got %#x want %#x", version, TestnetVersion)
	}
	pub := ed25519.NewKeyFromSeed(testSeed()).Public().(ed25519.PublicKey)
	if string(hash) != string(Hash160(pub)) {
		t.Fatalf("address does not commit to the public key")
	}

	const dataHash = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	sig, err := cred.Sign(dataHash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !VerifyEd25519SHA256([]byte(dataHash), sig, pub) {
		t.Fatalf("credential signature did not verify")
	}
}

func TestCredentialDilithium3(t *testing.T) {
	cred := Credential{Key: testSeed(), Provider: Dilithium3Provider{}}
	addr, err := cred.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	again, _ := cred.Address()
	if addr != again {
		t.Fatalf("address not deterministic")
	}
	sig, err := cred.Sign("deadbeef")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	var seed [mode3.SeedSize]byte
	copy(seed[:], testSeed())
	pub, _ := mode3.NewKeyFromSeed(&seed)
	if !VerifyDilithium3([]byte("deadbeef"), "sha3-256", sig, pub) {
		t.Fatalf("dilithium credential signature did not verify")
	}

	edAddr, _ := Credential{Key: testSeed(), Provider: Ed25519Provider{}}.Address()
	if edAddr == addr {
		t.Fatalf("schemes must derive different addresses from the same seed")
	}
}

func TestCredentialValidate(t *testing.T) {
	if err := (Credential{}).Validate(); err != nil {
		t.Fatalf("zero credential should validate: %v", err)
	}
	if err := (Credential{Key: testSeed(), Provider: Ed25519Provider{}}).Validate(); err != nil {
		t.Fatalf("complete credential should validate: %v", err)
	}
	if err := (Credential{Key: testSeed()}).Validate(); !errors.Is(err, ErrIncompleteCredential) {
		t.Fatalf("key only: got %v", err)
	}
	if err := (Credential{Provider: Ed25519Provider{}}).Validate(); !errors.Is(err, ErrIncompleteCredential) {
		t.Fatalf("provider only: got %v", err)
	}
	if _, err := (Credential{Key: testSeed()}).Sign("x"); !errors.Is(err, ErrIncompleteCredential) {
		t.Fatalf("Sign on incomplete credential: got %v", err)
	}
}

func TestNewCredentialIsFresh(t *testing.T) {
	a, err := NewCredential(Ed25519Provider{}, nil)
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	b, err := NewCredential(Ed25519Provider{}, nil)
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	if len(a.Key) != SeedSize {
		t.Fatalf("seed size: got %d", len(a.Key))
	}
	if string(a.Key) == string(b.Key) {
		t.Fatalf("expected distinct random seeds")
	}
	if _, err := NewCredential(nil, nil); err == nil {
		t.Fatalf("expected error without provider")
	}
}

func TestDecodeAddressRejectsCorruption(t *testing.T) {
	addr, err := AddressFromPublicKey(TestnetVersion, []byte("pub"))
	if err != nil {
		t.Fatalf("AddressFromPublicKey: %v", err)
	}
	last := addr[len(addr)-1]
	repl := byte('2')
	if last == repl {
		repl = '3'
	}
	bad := addr[:len(addr)-1] + string(repl)
	if _, _, err := DecodeAddress(bad); !errors.Is(err, ErrBadAddress) {
		t.Fatalf("corrupted address: got %v", err)
	}
	if _, _, err := DecodeAddress("0OIl"); !errors.Is(err, ErrBadAddress) {
		t.Fatalf("invalid alphabet: got %v", err)
	}
}

func TestLoadSeed(t *testing.T) {
	hexSeed := strings.Repeat("ab", SeedSize)
	seed, err := LoadSeed("0x"+hexSeed, "")
	if err != nil {
		t.Fatalf("LoadSeed hex: %v", err)
	}
	if len(seed) != SeedSize {
		t.Fatalf("seed size: got %d", len(seed))
	}

	p := filepath.Join(t.TempDir(), "root.key")
	if err := os.WriteFile(p, []byte(hexSeed+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fromFile, err := LoadSeed("", p)
	if err != nil {
		t.Fatalf("LoadSeed file: %v", err)
	}
	if string(fromFile) != string(seed) {
		t.Fatalf("file seed differs from hex seed")
	}

	if _, err := LoadSeed("", ""); !errors.Is(err, ErrNoSeed) {
		t.Fatalf("no source: got %v", err)
	}
	if _, err := LoadSeed(hexSeed, p); err == nil {
		t.Fatalf("expected error when both sources are given")
	}
	if _, err := ParseSeedHex("abcd"); err == nil {
		t.Fatalf("expected error for short seed")
	}
}
