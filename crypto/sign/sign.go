// Package sign wraps Ed25519 key generation, signing and verification
// for both Attester identities and the Verifier's own signing key.
package sign

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

const (
	// PrivateKeySize is the size in bytes of an Ed25519 private key.
	PrivateKeySize = ed25519.PrivateKeySize
	// PublicKeySize is the size in bytes of an Ed25519 public key,
	// and of a TRIP identity.
	PublicKeySize = ed25519.PublicKeySize
	// SignatureSize is the size in bytes of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize
)

// PrivateKey is a signing key, either an Attester's identity key or the
// Verifier's own signing key.
type PrivateKey ed25519.PrivateKey

// PublicKey is the public half of a PrivateKey. A PublicKey doubles as
// a TRIP identity.
type PublicKey ed25519.PublicKey

// GenerateKey creates a new random Ed25519 keypair.
func GenerateKey() (PrivateKey, error) {
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	return PrivateKey(sk), err
}

// NewKeyFromSeed deterministically derives a private key from a 32-byte
// seed, as loaded from persisted key material.
func NewKeyFromSeed(seed []byte) PrivateKey {
	return PrivateKey(ed25519.NewKeyFromSeed(seed))
}

// Sign signs message with key and returns a detached signature.
func (key PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(key), message)
}

// Public returns the public key corresponding to key.
func (key PrivateKey) Public() PublicKey {
	pk, ok := ed25519.PrivateKey(key).Public().(ed25519.PublicKey)
	if !ok {
		panic("sign: malformed private key")
	}
	return PublicKey(pk)
}

// Seed returns the 32-byte seed from which key was derived.
func (key PrivateKey) Seed() []byte {
	return ed25519.PrivateKey(key).Seed()
}

// Verify reports whether sig is a valid signature of message by pk.
func (pk PublicKey) Verify(message, sig []byte) bool {
	if len(pk) != PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pk), message, sig)
}

// String renders the public key as a lowercase hex string, used for
// log fields and map keys where a raw 32-byte slice is inconvenient.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk)
}

// ParsePublicKey validates that b is a well-formed identity public key.
func ParsePublicKey(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("sign: public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	pk := make(PublicKey, PublicKeySize)
	copy(pk, b)
	return pk, nil
}
