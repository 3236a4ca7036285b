package breadcrumb

import (
	"bytes"
	"testing"

	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
)

func sampleBreadcrumb(t *testing.T) (*Breadcrumb, sign.PrivateKey) {
	key, err := sign.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	b := &Breadcrumb{
		Index:      3,
		Identity:   key.Public(),
		Timestamp:  1700000000,
		Cell:       42,
		Resolution: 9,
		Meta:       MetaFlags{"exploration": true},
		PrevHash:   bytes.Repeat([]byte{0xAB}, 32),
	}
	b.Sign(key)
	return b, key
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b, _ := sampleBreadcrumb(t)
	encoded := b.CanonicalEncoding()

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Index != b.Index || decoded.Cell != b.Cell || decoded.Resolution != b.Resolution {
		t.Fatal("decoded scalar fields do not match original")
	}
	if !bytes.Equal(decoded.PrevHash, b.PrevHash) {
		t.Fatal("decoded prev_hash does not match original")
	}
	if !bytes.Equal(decoded.Signature, b.Signature) {
		t.Fatal("decoded signature does not match original")
	}
	if !decoded.Meta["exploration"] {
		t.Fatal("decoded meta flags lost the exploration flag")
	}

	reencoded := decoded.CanonicalEncoding()
	if !bytes.Equal(encoded, reencoded) {
		t.Fatal("re-encoding a decoded breadcrumb did not reproduce the original bytes")
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	b, _ := sampleBreadcrumb(t)
	a := b.CanonicalEncoding()
	c := b.CanonicalEncoding()
	if !bytes.Equal(a, c) {
		t.Fatal("CanonicalEncoding is not deterministic across calls")
	}
}

func TestSignatureRejectsSingleBitMutation(t *testing.T) {
	b, _ := sampleBreadcrumb(t)
	if !b.VerifySignature() {
		t.Fatal("valid signature was rejected")
	}

	mutated := *b
	mutated.Cell ^= 1
	if mutated.VerifySignature() {
		t.Fatal("signature verified after mutating the cell field")
	}
}

func TestGenesisRequiresNullPrevHash(t *testing.T) {
	key, err := sign.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	b := &Breadcrumb{Index: 0, Identity: key.Public(), Timestamp: 1700000000, Cell: 1, Resolution: 9}
	b.Sign(key)
	if !b.IsGenesis() {
		t.Fatal("breadcrumb at index 0 should report IsGenesis")
	}
	if len(b.PrevHash) != 0 {
		t.Fatal("genesis breadcrumb should carry no prev_hash")
	}
}
