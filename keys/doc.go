// Package keys provides the request credentials used by metatool.
//
// A Credential pairs a raw signing key (a 32-byte seed) with the Provider that
// knows how to turn it into a sender address and a signature. MetaCore nodes
// authenticate a request by checking the signature over the referenced content
// hash against the sender address.
//
// Two providers are available:
//   - Ed25519 (default): signature is base64(ed25519(sha256(message))).
//   - Dilithium3: post-quantum signature over a configurable digest.
//
// Addresses are wallet style: base58check(version || ripemd160(sha256(pub))).
//
// Keys are never written to disk by this package. A seed can be generated for
// the lifetime of a process or supplied from hex or a key file.
package keys
