package breadcrumb

import "testing"

func TestSealEpochVerifies(t *testing.T) {
	chain, key, err := buildChain(DefaultEpochSize)
	if err != nil {
		t.Fatal(err)
	}
	ep := SealEpoch(chain, 0, 0, uint64(DefaultEpochSize-1), key)
	if !ep.Verify(chain.Identity) {
		t.Fatal("sealed epoch signature does not verify")
	}
	if ep.UniqueCellCount == 0 {
		t.Fatal("sealed epoch reports zero unique cells")
	}
	if len(ep.MerkleRoot) != 32 {
		t.Fatalf("Merkle root length = %d, want 32", len(ep.MerkleRoot))
	}
}

func TestSealEpochRejectsTamperedSignature(t *testing.T) {
	chain, key, err := buildChain(DefaultEpochSize)
	if err != nil {
		t.Fatal(err)
	}
	ep := SealEpoch(chain, 0, 0, uint64(DefaultEpochSize-1), key)
	ep.MerkleRoot[0] ^= 0xFF
	if ep.Verify(chain.Identity) {
		t.Fatal("expected verification failure after tampering with the Merkle root")
	}
}

func TestSealableEpochs(t *testing.T) {
	chain, _, err := buildChain(250)
	if err != nil {
		t.Fatal(err)
	}
	if got := SealableEpochs(chain, 100, 0); got != 2 {
		t.Fatalf("SealableEpochs = %d, want 2", got)
	}
	if got := SealableEpochs(chain, 100, 2); got != 0 {
		t.Fatalf("SealableEpochs after sealing 2 = %d, want 0", got)
	}
}
