package breadcrumb

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/GNS-Foundation/trip-protocol/protocol"
)

// wireFields mirrors spec.md §6's integer-keyed map (keys 0..8) for a
// breadcrumb. Struct field declaration order matches ascending key
// order, so encoding this struct with the "keyasint" tag already
// produces a sorted-integer-key map — exactly RFC 8949 §4.2.1 Core
// Deterministic Encoding, without needing a Go map and an explicit sort.
type wireFields struct {
	Index      uint64          `cbor:"0,keyasint"`
	Identity   []byte          `cbor:"1,keyasint"`
	Timestamp  uint64          `cbor:"2,keyasint"`
	Cell       uint64          `cbor:"3,keyasint"`
	Resolution uint64          `cbor:"4,keyasint"`
	Context    []byte          `cbor:"5,keyasint"`
	PrevHash   []byte          `cbor:"6,keyasint"`
	Meta       map[string]bool `cbor:"7,keyasint"`
}

// wireFieldsSigned adds field 8, the signature, for the full (post-
// signing) canonical encoding used in block-hash chaining.
type wireFieldsSigned struct {
	wireFields
	Signature []byte `cbor:"8,keyasint"`
}

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	opts := cbor.CoreDetEncOptions() // RFC 8949 §4.2.1 Core Deterministic Encoding
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("breadcrumb: building canonical CBOR encoder: %v", err))
	}
	encMode = m

	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("breadcrumb: building CBOR decoder: %v", err))
	}
	decMode = dm
}

func (b *Breadcrumb) toWireFields() wireFields {
	return wireFields{
		Index:      b.Index,
		Identity:   []byte(b.Identity),
		Timestamp:  uint64(b.Timestamp),
		Cell:       b.Cell,
		Resolution: uint64(b.Resolution),
		Context:    append([]byte{}, b.Context[:]...),
		PrevHash:   b.PrevHash,
		Meta:       b.Meta,
	}
}

// CanonicalSignable returns the deterministic CBOR encoding of fields
// 0..7, the payload a breadcrumb's signature (field 8) is computed over.
func (b *Breadcrumb) CanonicalSignable() []byte {
	out, err := encMode.Marshal(b.toWireFields())
	if err != nil {
		panic(fmt.Sprintf("breadcrumb: marshaling canonical signable fields: %v", err))
	}
	return out
}

// CanonicalEncoding returns the deterministic CBOR encoding of all
// fields 0..8, including the signature. This is what block-hash
// chaining hashes, and what goes out over the wire.
func (b *Breadcrumb) CanonicalEncoding() []byte {
	out, err := encMode.Marshal(wireFieldsSigned{
		wireFields: b.toWireFields(),
		Signature:  b.Signature,
	})
	if err != nil {
		panic(fmt.Sprintf("breadcrumb: marshaling canonical encoding: %v", err))
	}
	return out
}

// Decode parses a single breadcrumb from its canonical CBOR encoding.
// It performs no signature or chain-linkage checks; those belong to the
// Validator, which needs the previous breadcrumb's context to run them.
func Decode(data []byte) (*Breadcrumb, error) {
	var w wireFieldsSigned
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, protocol.Newf(protocol.MalformedEncoding, "%v", err)
	}
	if len(w.Identity) != 32 {
		return nil, protocol.Newf(protocol.MalformedEncoding, "identity must be 32 bytes, got %d", len(w.Identity))
	}
	if w.Resolution < MinResolution || w.Resolution > MaxResolution {
		return nil, protocol.Newf(protocol.MalformedEncoding, "resolution %d out of range [%d,%d]", w.Resolution, MinResolution, MaxResolution)
	}
	if len(w.Context) != 32 {
		return nil, protocol.Newf(protocol.MalformedEncoding, "context digest must be 32 bytes, got %d", len(w.Context))
	}
	if w.PrevHash != nil && len(w.PrevHash) != 32 {
		return nil, protocol.Newf(protocol.MalformedEncoding, "prev_hash must be 32 bytes or null, got %d", len(w.PrevHash))
	}
	if len(w.Signature) != 64 {
		return nil, protocol.Newf(protocol.MalformedEncoding, "signature must be 64 bytes, got %d", len(w.Signature))
	}

	b := &Breadcrumb{
		Index:      w.Index,
		Identity:   append([]byte{}, w.Identity...),
		Timestamp:  int64(w.Timestamp),
		Cell:       w.Cell,
		Resolution: uint8(w.Resolution),
		PrevHash:   w.PrevHash,
		Meta:       w.Meta,
		Signature:  w.Signature,
	}
	copy(b.Context[:], w.Context)
	return b, nil
}

// DecodeAll parses a canonical CBOR array of breadcrumbs, as delivered
// by an Attester in a single chain-extension message.
func DecodeAll(data []byte) ([]*Breadcrumb, error) {
	var raw []cbor.RawMessage
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, protocol.Newf(protocol.MalformedEncoding, "breadcrumb array: %v", err)
	}
	out := make([]*Breadcrumb, 0, len(raw))
	for _, r := range raw {
		b, err := Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
