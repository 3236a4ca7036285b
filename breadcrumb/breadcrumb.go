// Package breadcrumb implements the Chain Validator: decoding of the
// deterministic binary-object breadcrumb wire format, per-breadcrumb
// signature and linkage verification, and the append-only Chain and
// Epoch types built from validated breadcrumbs.
package breadcrumb

import (
	"github.com/GNS-Foundation/trip-protocol/crypto/hash"
	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
)

// MinResolution and MaxResolution bound the configurable hex-cell
// resolution from spec.md §3.
const (
	MinResolution = 7
	MaxResolution = 10
)

// MetaFlags is the open map of meta flags carried in field 7 of a
// breadcrumb. The only flag the Chain Validator itself interprets is
// ExplorationFlag; all others are opaque and pass through untouched.
type MetaFlags map[string]bool

// ExplorationFlag, when set, suppresses the soft interval-too-short
// warning for a breadcrumb that was deliberately captured early.
const ExplorationFlag = "exploration"

// Breadcrumb is one signed record of spatiotemporal presence, matching
// spec.md §3/§6 field-for-field.
type Breadcrumb struct {
	Index      uint64
	Identity   sign.PublicKey
	Timestamp  int64
	Cell       uint64
	Resolution uint8
	Context    [32]byte
	// PrevHash is nil for index 0 (the null sentinel) and the 32-byte
	// block hash of the previous breadcrumb otherwise.
	PrevHash  []byte
	Meta      MetaFlags
	Signature []byte
}

// Sign computes and sets the breadcrumb's signature over its canonical
// signable encoding (fields 0..7).
func (b *Breadcrumb) Sign(key sign.PrivateKey) {
	b.Signature = key.Sign(b.CanonicalSignable())
}

// VerifySignature reports whether the breadcrumb's signature is valid
// under its own Identity field.
func (b *Breadcrumb) VerifySignature() bool {
	return b.Identity.Verify(b.CanonicalSignable(), b.Signature)
}

// BlockHash is the cryptographic hash a successor breadcrumb's PrevHash
// field must equal: SHA-256 of the canonical encoding of all fields
// 0..8, including the signature itself.
func (b *Breadcrumb) BlockHash() []byte {
	return hash.Digest(b.CanonicalEncoding())
}

// IsGenesis reports whether b is a chain's index-0 breadcrumb, which
// must carry the null predecessor-hash sentinel rather than a real hash.
func (b *Breadcrumb) IsGenesis() bool {
	return b.Index == 0
}

// Explores reports whether b opted out of the soft minimum-interval
// warning via its meta flags.
func (b *Breadcrumb) Explores() bool {
	return b.Meta != nil && b.Meta[ExplorationFlag]
}
