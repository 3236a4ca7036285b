// Package certificate implements the Certificate Issuer: assembly,
// canonical CBOR encoding, and Verifier signing of the PoH Certificate,
// per spec.md §3 and §4.9.
package certificate

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
	"github.com/GNS-Foundation/trip-protocol/protocol"
)

// Certificate is the PoH Certificate spec.md §3 defines: a statistical
// summary attestation bound to a relying-party nonce and the chain
// head hash at issuance.
type Certificate struct {
	Identity          sign.PublicKey
	IssuedAt          int64
	EpochCount        uint64
	Alpha             float64
	Beta              float64
	KappaKM           float64
	Predictability    float64
	CriticalityConf   float64
	TrustScore        float64
	UniqueCellCount   uint64
	TotalBreadcrumbs  uint64
	ValiditySeconds   uint32
	Nonce             [protocol.NonceSize]byte
	ChainHeadHash     [32]byte
	Signature         []byte
}

// wireFields mirrors spec.md §3's 15-field certificate, keys 0..13 for
// the signable payload, key 14 for the signature, laid out in
// ascending declaration order exactly as breadcrumb/codec.go does for
// core deterministic CBOR encoding.
type wireFields struct {
	Identity         []byte  `cbor:"0,keyasint"`
	IssuedAt         uint64  `cbor:"1,keyasint"`
	EpochCount       uint64  `cbor:"2,keyasint"`
	Alpha            float64 `cbor:"3,keyasint"`
	Beta             float64 `cbor:"4,keyasint"`
	KappaKM          float64 `cbor:"5,keyasint"`
	Predictability   float64 `cbor:"6,keyasint"`
	CriticalityConf  float64 `cbor:"7,keyasint"`
	TrustScore       float64 `cbor:"8,keyasint"`
	UniqueCellCount  uint64  `cbor:"9,keyasint"`
	TotalBreadcrumbs uint64  `cbor:"10,keyasint"`
	ValiditySeconds  uint64  `cbor:"11,keyasint"`
	Nonce            []byte  `cbor:"12,keyasint"`
	ChainHeadHash    []byte  `cbor:"13,keyasint"`
}

type wireFieldsSigned struct {
	wireFields
	Signature []byte `cbor:"14,keyasint"`
}

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("certificate: building canonical CBOR encoder: %v", err))
	}
	encMode = m
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("certificate: building CBOR decoder: %v", err))
	}
	decMode = dm
}

func (c *Certificate) toWireFields() wireFields {
	return wireFields{
		Identity:         []byte(c.Identity),
		IssuedAt:         uint64(c.IssuedAt),
		EpochCount:       c.EpochCount,
		Alpha:            c.Alpha,
		Beta:             c.Beta,
		KappaKM:          c.KappaKM,
		Predictability:   c.Predictability,
		CriticalityConf:  c.CriticalityConf,
		TrustScore:       c.TrustScore,
		UniqueCellCount:  c.UniqueCellCount,
		TotalBreadcrumbs: c.TotalBreadcrumbs,
		ValiditySeconds:  uint64(c.ValiditySeconds),
		Nonce:            append([]byte{}, c.Nonce[:]...),
		ChainHeadHash:    append([]byte{}, c.ChainHeadHash[:]...),
	}
}

// CanonicalSignable returns the deterministic CBOR encoding of fields
// 0..13, the payload the Verifier's signature (field 14) covers.
func (c *Certificate) CanonicalSignable() []byte {
	out, err := encMode.Marshal(c.toWireFields())
	if err != nil {
		panic(fmt.Sprintf("certificate: marshaling canonical signable fields: %v", err))
	}
	return out
}

// CanonicalEncoding returns the deterministic CBOR encoding of all 15
// fields, including the signature, as delivered to the relying party.
func (c *Certificate) CanonicalEncoding() []byte {
	out, err := encMode.Marshal(wireFieldsSigned{
		wireFields: c.toWireFields(),
		Signature:  c.Signature,
	})
	if err != nil {
		panic(fmt.Sprintf("certificate: marshaling canonical encoding: %v", err))
	}
	return out
}

// Sign computes the Verifier's signature over CanonicalSignable and
// stores it in the certificate.
func (c *Certificate) Sign(verifierKey sign.PrivateKey) {
	c.Signature = verifierKey.Sign(c.CanonicalSignable())
}

// Verify checks the certificate's signature against verifierIdentity.
func (c *Certificate) Verify(verifierIdentity sign.PublicKey) bool {
	if len(c.Signature) != sign.SignatureSize {
		return false
	}
	return verifierIdentity.Verify(c.CanonicalSignable(), c.Signature)
}

// Decode parses a certificate from its canonical CBOR encoding,
// validating the mandatory nonce and chain-head-hash fields per
// spec.md §3 ("Nonce and chain-head hash are mandatory").
func Decode(data []byte) (*Certificate, error) {
	var w wireFieldsSigned
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, protocol.Newf(protocol.MalformedEncoding, "%v", err)
	}
	if len(w.Identity) != sign.PublicKeySize {
		return nil, protocol.Newf(protocol.MalformedEncoding, "identity must be %d bytes, got %d", sign.PublicKeySize, len(w.Identity))
	}
	if len(w.Nonce) != protocol.NonceSize {
		return nil, protocol.Newf(protocol.MalformedEncoding, "nonce must be %d bytes, got %d", protocol.NonceSize, len(w.Nonce))
	}
	if len(w.ChainHeadHash) != 32 {
		return nil, protocol.Newf(protocol.MalformedEncoding, "chain head hash must be 32 bytes, got %d", len(w.ChainHeadHash))
	}
	if len(w.Signature) != sign.SignatureSize {
		return nil, protocol.Newf(protocol.MalformedEncoding, "signature must be %d bytes, got %d", sign.SignatureSize, len(w.Signature))
	}

	c := &Certificate{
		Identity:         append([]byte{}, w.Identity...),
		IssuedAt:         int64(w.IssuedAt),
		EpochCount:       w.EpochCount,
		Alpha:            w.Alpha,
		Beta:             w.Beta,
		KappaKM:          w.KappaKM,
		Predictability:   w.Predictability,
		CriticalityConf:  w.CriticalityConf,
		TrustScore:       w.TrustScore,
		UniqueCellCount:  w.UniqueCellCount,
		TotalBreadcrumbs: w.TotalBreadcrumbs,
		ValiditySeconds:  uint32(w.ValiditySeconds),
		Signature:        w.Signature,
	}
	copy(c.Nonce[:], w.Nonce)
	copy(c.ChainHeadHash[:], w.ChainHeadHash)
	return c, nil
}

// IsExpired reports whether the certificate's validity window has
// elapsed at nowUnix.
func (c *Certificate) IsExpired(nowUnix int64) bool {
	return nowUnix > c.IssuedAt+int64(c.ValiditySeconds)
}
