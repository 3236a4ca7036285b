package breadcrumb

import (
	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
	"github.com/GNS-Foundation/trip-protocol/protocol"
)

// Policy carries the Chain Validator's configurable thresholds, drawn
// from spec.md §6's configuration surface.
type Policy struct {
	PerCellCap          int   // default 10
	MinIntervalSeconds  int64 // hard floor, default 300 (5 min)
	SoftWarnIntervalSec int64 // soft warning threshold, default 900 (15 min)
}

// DefaultPolicy returns the protocol-fixed defaults from spec.md §6.
func DefaultPolicy() Policy {
	return Policy{
		PerCellCap:          10,
		MinIntervalSeconds:  300,
		SoftWarnIntervalSec: 900,
	}
}

// Chain is the append-only sequence of breadcrumbs for a single
// identity, plus the derived state the Validator maintains as it goes:
// head index/hash, the unique-cell set, and per-cell counts used to
// enforce the per-cell cap without rescanning the whole chain.
type Chain struct {
	Identity    sign.PublicKey
	Breadcrumbs []*Breadcrumb

	cellCounts  map[uint64]int
	uniqueCells map[uint64]struct{}
}

// NewChain creates an empty chain owned by identity.
func NewChain(identity sign.PublicKey) *Chain {
	return &Chain{
		Identity:    identity,
		cellCounts:  make(map[uint64]int),
		uniqueCells: make(map[uint64]struct{}),
	}
}

// Len returns the number of breadcrumbs accepted into the chain.
func (c *Chain) Len() int { return len(c.Breadcrumbs) }

// Head returns the most recently accepted breadcrumb, or nil for an
// empty chain.
func (c *Chain) Head() *Breadcrumb {
	if len(c.Breadcrumbs) == 0 {
		return nil
	}
	return c.Breadcrumbs[len(c.Breadcrumbs)-1]
}

// HeadHash returns the block hash of the chain head, used to bind
// liveness responses and certificates to a consistent snapshot.
func (c *Chain) HeadHash() []byte {
	h := c.Head()
	if h == nil {
		return nil
	}
	return h.BlockHash()
}

// HeadIndex returns the index of the chain head. For an empty chain it
// returns 0, matching the expected index of the first breadcrumb.
func (c *Chain) HeadIndex() uint64 {
	h := c.Head()
	if h == nil {
		return 0
	}
	return h.Index
}

// UniqueCellCount returns the number of distinct cells visited across
// the whole chain.
func (c *Chain) UniqueCellCount() int { return len(c.uniqueCells) }

// CellCount returns how many breadcrumbs have landed on cell across the
// whole chain so far.
func (c *Chain) CellCount(cell uint64) int { return c.cellCounts[cell] }

// Validator runs the Chain Validator algorithm from spec.md §4.1: it
// verifies signatures, index contiguity, monotonic timestamps,
// predecessor-hash linkage, cell deduplication, the per-cell cap, and
// the minimum collection interval.
type Validator struct {
	Policy Policy
}

// NewValidator builds a Validator with the given policy.
func NewValidator(policy Policy) *Validator {
	return &Validator{Policy: policy}
}

// Extend validates crumbs in order against chain (which may be empty)
// and appends each one that passes. It stops and returns the first
// validation failure, identifying the offending breadcrumb; the
// Verifier never repairs a chain, so the caller must discard the whole
// extension attempt on error. Warnings (soft interval) are returned
// alongside a successful result rather than failing it.
func (v *Validator) Extend(chain *Chain, crumbs []*Breadcrumb) (warnings []*protocol.Error, err error) {
	for _, b := range crumbs {
		warn, verr := v.acceptOne(chain, b)
		if verr != nil {
			return warnings, verr
		}
		if warn != nil {
			warnings = append(warnings, warn)
		}
	}
	return warnings, nil
}

func (v *Validator) acceptOne(chain *Chain, b *Breadcrumb) (warning *protocol.Error, err error) {
	prev := chain.Head()
	expectedIndex := uint64(chain.Len())

	if string(b.Identity) != string(chain.Identity) {
		return nil, protocol.Newf(protocol.MalformedEncoding, "identity mismatch: breadcrumb signed by a different key than the chain owner").AtIndex(b.Index)
	}
	if !b.VerifySignature() {
		return nil, protocol.Newf(protocol.InvalidSignature, "signature does not verify under identity key").AtIndex(b.Index)
	}
	if b.Index != expectedIndex {
		return nil, protocol.Newf(protocol.IndexGap, "expected index %d, got %d", expectedIndex, b.Index).AtIndex(b.Index)
	}

	if prev == nil {
		if len(b.PrevHash) != 0 {
			return nil, protocol.Newf(protocol.BrokenLink, "genesis breadcrumb must carry the null predecessor-hash sentinel").AtIndex(b.Index)
		}
	} else {
		if b.Timestamp < prev.Timestamp {
			return nil, protocol.Newf(protocol.TimestampRegress, "timestamp %d precedes predecessor's %d", b.Timestamp, prev.Timestamp).AtIndex(b.Index)
		}
		wantHash := prev.BlockHash()
		if string(b.PrevHash) != string(wantHash) {
			return nil, protocol.Newf(protocol.BrokenLink, "predecessor-hash does not match hash of breadcrumb %d", prev.Index).AtIndex(b.Index)
		}
		if b.Cell == prev.Cell {
			return nil, protocol.Newf(protocol.DuplicateCell, "cell %d repeats the predecessor's cell", b.Cell).AtIndex(b.Index).AtCell(b.Cell)
		}

		delta := b.Timestamp - prev.Timestamp
		if delta < v.Policy.MinIntervalSeconds {
			return nil, protocol.Newf(protocol.IntervalTooShort, "interval %ds is below the %ds floor", delta, v.Policy.MinIntervalSeconds).AtIndex(b.Index)
		}
		if delta < v.Policy.SoftWarnIntervalSec && !b.Explores() {
			warning = protocol.Newf(protocol.IntervalTooShort, "interval %ds is below the %ds soft threshold", delta, v.Policy.SoftWarnIntervalSec).AtIndex(b.Index)
		}
	}

	if chain.cellCounts[b.Cell]+1 > v.Policy.PerCellCap {
		return nil, protocol.Newf(protocol.CellCapExceeded, "cell %d would exceed the per-cell cap of %d", b.Cell, v.Policy.PerCellCap).AtIndex(b.Index).AtCell(b.Cell)
	}

	chain.Breadcrumbs = append(chain.Breadcrumbs, b)
	chain.cellCounts[b.Cell]++
	chain.uniqueCells[b.Cell] = struct{}{}
	return warning, nil
}
