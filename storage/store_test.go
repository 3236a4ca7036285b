package storage

import (
	"testing"

	"github.com/GNS-Foundation/trip-protocol/breadcrumb"
	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
	"github.com/GNS-Foundation/trip-protocol/storage/kv/memkv"
)

func buildTestChain(t *testing.T, n int) (*breadcrumb.Chain, sign.PrivateKey) {
	t.Helper()
	key, err := sign.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	chain := breadcrumb.NewChain(key.Public())
	validator := breadcrumb.NewValidator(breadcrumb.DefaultPolicy())

	var prevHash []byte
	ts := int64(1_700_000_000)
	crumbs := make([]*breadcrumb.Breadcrumb, 0, n)
	for i := 0; i < n; i++ {
		b := &breadcrumb.Breadcrumb{
			Index:     uint64(i),
			Identity:  key.Public(),
			Timestamp: ts,
			Cell:      uint64(i), // distinct cells avoids dedup/cap rejections
			Resolution: 9,
			PrevHash:  prevHash,
		}
		b.Sign(key)
		crumbs = append(crumbs, b)
		prevHash = b.BlockHash()
		ts += 900
	}
	if _, err := validator.Extend(chain, crumbs); err != nil {
		t.Fatal(err)
	}
	return chain, key
}

func TestChainStoreRoundTrip(t *testing.T) {
	chain, key := buildTestChain(t, 5)
	db := memkv.New()
	store := NewChainStore(db)

	if err := store.Save(chain); err != nil {
		t.Fatal(err)
	}
	loaded, err := store.Load(key.Public(), breadcrumb.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != chain.Len() {
		t.Fatalf("loaded chain length = %d, want %d", loaded.Len(), chain.Len())
	}
	if string(loaded.HeadHash()) != string(chain.HeadHash()) {
		t.Fatal("loaded chain head hash does not match the original")
	}
}

func TestChainStoreLoadMissingReturnsNil(t *testing.T) {
	key, err := sign.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	db := memkv.New()
	store := NewChainStore(db)
	loaded, err := store.Load(key.Public(), breadcrumb.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if loaded != nil {
		t.Fatal("loading a never-saved chain should return nil, nil")
	}
}

func TestKeyStoreLoadOrCreatePersists(t *testing.T) {
	db := memkv.New()
	store := NewKeyStore(db)

	first, err := store.LoadOrCreate()
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.LoadOrCreate()
	if err != nil {
		t.Fatal(err)
	}
	if string(first.Seed()) != string(second.Seed()) {
		t.Fatal("LoadOrCreate should return the same key across calls once persisted")
	}
}

func TestEpochCounterRoundTrip(t *testing.T) {
	db := memkv.New()
	key, err := sign.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := ReadEpochCount(db, key.Public()); got != 0 {
		t.Fatalf("initial epoch count = %d, want 0", got)
	}
	if err := WriteEpochCount(db, key.Public(), 7); err != nil {
		t.Fatal(err)
	}
	got, err := ReadEpochCount(db, key.Public())
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Fatalf("epoch count = %d, want 7", got)
	}
}
