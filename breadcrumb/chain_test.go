package breadcrumb

import (
	"testing"

	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
	"github.com/GNS-Foundation/trip-protocol/protocol"
)

func TestExtendValidChain(t *testing.T) {
	chain, _, err := buildChain(64)
	if err != nil {
		t.Fatal(err)
	}
	if chain.Len() != 64 {
		t.Fatalf("chain length = %d, want 64", chain.Len())
	}
	if chain.HeadIndex() != 63 {
		t.Fatalf("head index = %d, want 63", chain.HeadIndex())
	}
}

func TestRejectsBadSignature(t *testing.T) {
	key, err := sign.GenerateKey()
	_ = err
	identity := key.Public()
	chain := NewChain(identity)
	v := NewValidator(DefaultPolicy())

	b := &Breadcrumb{Index: 0, Identity: identity, Timestamp: 1700000000, Cell: 1, Resolution: 9}
	b.Sign(key)
	b.Signature[0] ^= 0xFF // flip a bit

	if _, err := v.Extend(chain, []*Breadcrumb{b}); err == nil {
		t.Fatal("expected signature verification failure")
	} else if protocol.CodeOf(err) != protocol.InvalidSignature {
		t.Fatalf("error code = %v, want InvalidSignature", protocol.CodeOf(err))
	}
}

func TestRejectsIndexGap(t *testing.T) {
	key, _ := sign.GenerateKey()
	identity := key.Public()
	chain := NewChain(identity)
	v := NewValidator(DefaultPolicy())

	b := &Breadcrumb{Index: 1, Identity: identity, Timestamp: 1700000000, Cell: 1, Resolution: 9}
	b.Sign(key)

	if _, err := v.Extend(chain, []*Breadcrumb{b}); protocol.CodeOf(err) != protocol.IndexGap {
		t.Fatalf("error code = %v, want IndexGap", protocol.CodeOf(err))
	}
}

func TestBrokenLinkDetection(t *testing.T) {
	chain, key, err := buildChain(100)
	if err != nil {
		t.Fatal(err)
	}
	// corrupt breadcrumb 73's predecessor-hash field and re-sign so the
	// signature itself still verifies, isolating the broken-link check.
	corrupted := *chain.Breadcrumbs[73]
	corrupted.PrevHash = append([]byte{}, corrupted.PrevHash...)
	corrupted.PrevHash[0] ^= 0xFF
	corrupted.Sign(key)

	fresh := NewChain(chain.Identity)
	v := NewValidator(DefaultPolicy())
	crumbs := make([]*Breadcrumb, 0, 100)
	for i, b := range chain.Breadcrumbs {
		if i == 73 {
			crumbs = append(crumbs, &corrupted)
		} else {
			crumbs = append(crumbs, b)
		}
	}
	_, err = v.Extend(fresh, crumbs)
	if err == nil {
		t.Fatal("expected BROKEN_LINK error")
	}
	perr, ok := err.(*protocol.Error)
	if !ok {
		t.Fatalf("error type = %T, want *protocol.Error", err)
	}
	if perr.Code != protocol.BrokenLink || perr.Index != 73 {
		t.Fatalf("got code=%v index=%d, want BrokenLink at 73", perr.Code, perr.Index)
	}
}

func TestRejectsDuplicateCell(t *testing.T) {
	key, _ := sign.GenerateKey()
	identity := key.Public()
	chain := NewChain(identity)
	v := NewValidator(DefaultPolicy())

	first := &Breadcrumb{Index: 0, Identity: identity, Timestamp: 1700000000, Cell: 5, Resolution: 9}
	first.Sign(key)
	second := &Breadcrumb{Index: 1, Identity: identity, Timestamp: 1700000900, Cell: 5, Resolution: 9, PrevHash: first.BlockHash()}
	second.Sign(key)

	if _, err := v.Extend(chain, []*Breadcrumb{first, second}); protocol.CodeOf(err) != protocol.DuplicateCell {
		t.Fatalf("error code = %v, want DuplicateCell", protocol.CodeOf(err))
	}
}

func TestRejectsIntervalTooShort(t *testing.T) {
	key, _ := sign.GenerateKey()
	identity := key.Public()
	chain := NewChain(identity)
	v := NewValidator(DefaultPolicy())

	first := &Breadcrumb{Index: 0, Identity: identity, Timestamp: 1700000000, Cell: 5, Resolution: 9}
	first.Sign(key)
	second := &Breadcrumb{Index: 1, Identity: identity, Timestamp: 1700000000 + 60, Cell: 6, Resolution: 9, PrevHash: first.BlockHash()}
	second.Sign(key)

	if _, err := v.Extend(chain, []*Breadcrumb{first, second}); protocol.CodeOf(err) != protocol.IntervalTooShort {
		t.Fatalf("error code = %v, want IntervalTooShort", protocol.CodeOf(err))
	}
}

func TestSoftIntervalWarningWithoutExplorationFlag(t *testing.T) {
	key, _ := sign.GenerateKey()
	identity := key.Public()
	chain := NewChain(identity)
	v := NewValidator(DefaultPolicy())

	first := &Breadcrumb{Index: 0, Identity: identity, Timestamp: 1700000000, Cell: 5, Resolution: 9}
	first.Sign(key)
	second := &Breadcrumb{Index: 1, Identity: identity, Timestamp: 1700000000 + 600, Cell: 6, Resolution: 9, PrevHash: first.BlockHash()}
	second.Sign(key)

	warnings, err := v.Extend(chain, []*Breadcrumb{first, second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one soft-interval warning, got %d", len(warnings))
	}
}

func TestPerCellCapExceeded(t *testing.T) {
	key, _ := sign.GenerateKey()
	identity := key.Public()
	chain := NewChain(identity)
	policy := DefaultPolicy()
	policy.PerCellCap = 2
	v := NewValidator(policy)

	var crumbs []*Breadcrumb
	var prevHash []byte
	for i := 0; i < 5; i++ {
		cell := uint64(1)
		if i%2 == 1 {
			cell = 2 // alternate so no duplicate-cell rejection fires first
		}
		b := &Breadcrumb{
			Index: uint64(i), Identity: identity,
			Timestamp: 1700000000 + int64(i)*900, Cell: cell, Resolution: 9, PrevHash: prevHash,
		}
		b.Sign(key)
		crumbs = append(crumbs, b)
		prevHash = b.BlockHash()
	}

	if _, err := v.Extend(chain, crumbs); protocol.CodeOf(err) != protocol.CellCapExceeded {
		t.Fatalf("error code = %v, want CellCapExceeded", protocol.CodeOf(err))
	}
}
