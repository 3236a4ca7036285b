package hash

import (
	"bytes"
	"testing"
)

func TestDigestDeterministic(t *testing.T) {
	a := Digest([]byte("breadcrumb"), []byte("fields"))
	b := Digest([]byte("breadcrumb"), []byte("fields"))
	if !bytes.Equal(a, b) {
		t.Fatal("Digest is not deterministic across calls with identical input")
	}
	if len(a) != Size {
		t.Fatalf("Digest size = %d, want %d", len(a), Size)
	}
}

func TestDigestSensitiveToOrder(t *testing.T) {
	a := Digest([]byte("a"), []byte("b"))
	b := Digest([]byte("b"), []byte("a"))
	if bytes.Equal(a, b) {
		t.Fatal("Digest did not distinguish input order")
	}
}

func TestMerkleRootEmpty(t *testing.T) {
	root := MerkleRoot(nil)
	if len(root) != Size {
		t.Fatalf("empty MerkleRoot size = %d, want %d", len(root), Size)
	}
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	leaf := Digest([]byte("only block hash"))
	if !bytes.Equal(MerkleRoot([][]byte{leaf}), leaf) {
		t.Fatal("single-leaf MerkleRoot must equal the leaf itself")
	}
}

func TestMerkleRootDeterministicAndOrderSensitive(t *testing.T) {
	leaves := [][]byte{
		Digest([]byte("1")), Digest([]byte("2")), Digest([]byte("3")),
	}
	r1 := MerkleRoot(leaves)
	r2 := MerkleRoot(leaves)
	if !bytes.Equal(r1, r2) {
		t.Fatal("MerkleRoot is not deterministic for the same leaf order")
	}

	reordered := [][]byte{leaves[2], leaves[1], leaves[0]}
	r3 := MerkleRoot(reordered)
	if bytes.Equal(r1, r3) {
		t.Fatal("MerkleRoot ignored leaf ordering")
	}
}

func TestMerkleRootOddLeafCount(t *testing.T) {
	leaves := [][]byte{Digest([]byte("a")), Digest([]byte("b")), Digest([]byte("c"))}
	root := MerkleRoot(leaves)
	if len(root) != Size {
		t.Fatalf("odd-count MerkleRoot size = %d, want %d", len(root), Size)
	}
}
