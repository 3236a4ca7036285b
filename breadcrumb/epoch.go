package breadcrumb

import (
	"github.com/GNS-Foundation/trip-protocol/crypto/hash"
	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
)

// DefaultEpochSize is the number of consecutive breadcrumbs sealed into
// one epoch by default (spec.md §6).
const DefaultEpochSize = 100

// Epoch is a sealed, immutable group of breadcrumbs, per spec.md §3/§6.
type Epoch struct {
	Number          uint64
	Identity        sign.PublicKey
	FirstIndex      uint64
	LastIndex       uint64
	FirstTimestamp  int64
	LastTimestamp   int64
	MerkleRoot      []byte
	UniqueCellCount uint64
	Signature       []byte
}

// SealEpoch builds and signs an Epoch over chain.Breadcrumbs[firstIndex:lastIndex+1].
// The Merkle root is computed over the member breadcrumbs' block hashes
// in their natural (index) order, per spec.md §6.
func SealEpoch(chain *Chain, number, firstIndex, lastIndex uint64, key sign.PrivateKey) *Epoch {
	members := chain.Breadcrumbs[firstIndex : lastIndex+1]
	leaves := make([][]byte, len(members))
	seenCells := make(map[uint64]struct{})
	for i, b := range members {
		leaves[i] = b.BlockHash()
		seenCells[b.Cell] = struct{}{}
	}

	ep := &Epoch{
		Number:          number,
		Identity:        chain.Identity,
		FirstIndex:      firstIndex,
		LastIndex:       lastIndex,
		FirstTimestamp:  members[0].Timestamp,
		LastTimestamp:   members[len(members)-1].Timestamp,
		MerkleRoot:      hash.MerkleRoot(leaves),
		UniqueCellCount: uint64(len(seenCells)),
	}
	ep.Signature = key.Sign(ep.signableFields())
	return ep
}

func (e *Epoch) signableFields() []byte {
	buf := make([]byte, 0, 8*6+32+len(e.Identity))
	buf = appendUint64Field(buf, e.Number)
	buf = append(buf, e.Identity...)
	buf = appendUint64Field(buf, e.FirstIndex)
	buf = appendUint64Field(buf, e.LastIndex)
	buf = appendUint64Field(buf, uint64(e.FirstTimestamp))
	buf = appendUint64Field(buf, uint64(e.LastTimestamp))
	buf = append(buf, e.MerkleRoot...)
	buf = appendUint64Field(buf, e.UniqueCellCount)
	return buf
}

func appendUint64Field(buf []byte, v uint64) []byte {
	var tmp [8]byte
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(v)
		v >>= 8
	}
	return append(buf, tmp[:]...)
}

// Verify checks ep's signature against identity's public key.
func (e *Epoch) Verify(identity sign.PublicKey) bool {
	return identity.Verify(e.signableFields(), e.Signature)
}

// SealableEpochs returns how many complete, not-yet-sealed epochs of
// size epochSize exist at the head of chain, given the number of
// epochs already sealed.
func SealableEpochs(chain *Chain, epochSize int, sealedCount uint64) uint64 {
	total := uint64(chain.Len())
	sealedThrough := sealedCount * uint64(epochSize)
	if total <= sealedThrough {
		return 0
	}
	return (total - sealedThrough) / uint64(epochSize)
}
