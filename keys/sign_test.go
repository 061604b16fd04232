package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"io"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

type deterministicReader struct{ b byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func testSeed() []byte {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestSignEd25519SHA256_Verifies(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(testSeed())
	pub := priv.Public().(ed25519.PublicKey)

	msg := []byte("hello")
	sigB64 := SignEd25519SHA256(msg, priv)
	if !VerifyEd25519SHA256(msg, sigB64, pub) {
		t.Fatalf("signature did not verify")
	}
	if VerifyEd25519SHA256([]byte("other"), sigB64, pub) {
		t.Fatalf("signature verified for a different message")
	}
	if VerifyEd25519SHA256(msg, "not base64!", pub) {
		t.Fatalf("garbage signature verified")
	}
}

func TestSignDilithium3_Verifies_SHA3_256(t *testing.T) {
	var r io.Reader = &deterministicReader{}
	pk, sk, err := mode3.GenerateKey(r)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	msg := []byte("hello")
	sigB64, err := SignDilithium3(msg, "sha3-256", sk)
	if err != nil {
		t.Fatalf("SignDilithium3: %v", err)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(sig) != mode3.SignatureSize {
		t.Fatalf("unexpected signature size: got %d want %d", len(sig), mode3.SignatureSize)
	}
	if !VerifyDilithium3(msg, "sha3-256", sigB64, pk) {
		t.Fatalf("signature did not verify")
	}
	if VerifyDilithium3(msg, "sha256", sigB64, pk) {
		t.Fatalf("signature verified under a different digest")
	}
}

func TestSignDilithium3_RejectsUnknownHash(t *testing.T) {
	_, sk, err := mode3.GenerateKey(&deterministicReader{})
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if _, err := SignDilithium3([]byte("x"), "md5", sk); err == nil {
		t.Fatalf("expected error for md5")
	}
	if _, err := SignDilithium3([]byte("x"), "sha256", nil); err == nil {
		t.Fatalf("expected error for nil key")
	}
}
