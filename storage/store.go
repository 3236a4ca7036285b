// Package storage provides the Verifier's persistence layer: a
// ChainStore for breadcrumb chains, a per-identity epoch counter
// (ReadEpochCount/WriteEpochCount), a ProfileStore
// for mobility profiles, and a KeyStore for the Verifier's own signing
// key, all built on the generic storage/kv.DB interface (adapted from
// the teacher's kv abstraction and its goleveldb backend).
package storage

import (
	"encoding/binary"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/GNS-Foundation/trip-protocol/breadcrumb"
	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
	"github.com/GNS-Foundation/trip-protocol/mobility"
	"github.com/GNS-Foundation/trip-protocol/protocol"
	"github.com/GNS-Foundation/trip-protocol/storage/kv"
)

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}

const (
	chainKeyPrefix    = "chain/"
	profileKeyPrefix  = "profile/"
	signingKeyRecord  = "verifier/signing-key"
)

func chainKey(identity sign.PublicKey) []byte {
	return append([]byte(chainKeyPrefix), identity...)
}

func profileKey(identity sign.PublicKey) []byte {
	return append([]byte(profileKeyPrefix), identity...)
}

// ChainStore persists breadcrumb chains in their canonical CBOR
// encoding, one key per identity, keyed by the identity's raw public
// key bytes.
type ChainStore struct {
	db kv.DB
}

// NewChainStore wraps db as a ChainStore.
func NewChainStore(db kv.DB) *ChainStore { return &ChainStore{db: db} }

// Save persists chain's full breadcrumb sequence as a CBOR array.
func (s *ChainStore) Save(chain *breadcrumb.Chain) error {
	encoded := make([]cbor.RawMessage, chain.Len())
	for i, b := range chain.Breadcrumbs {
		encoded[i] = b.CanonicalEncoding()
	}
	blob, err := encMode.Marshal(encoded)
	if err != nil {
		return protocol.Newf(protocol.IOFault, "encoding chain for storage: %v", err)
	}
	if err := s.db.Put(chainKey(chain.Identity), blob); err != nil {
		return protocol.Newf(protocol.IOFault, "writing chain: %v", err)
	}
	return nil
}

// Load reconstructs a Chain for identity from storage. It returns
// (nil, nil) if no chain has been persisted yet.
func (s *ChainStore) Load(identity sign.PublicKey, policy breadcrumb.Policy) (*breadcrumb.Chain, error) {
	blob, err := s.db.Get(chainKey(identity))
	if err != nil {
		if err == s.db.ErrNotFound() {
			return nil, nil
		}
		return nil, protocol.Newf(protocol.IOFault, "reading chain: %v", err)
	}
	crumbs, err := breadcrumb.DecodeAll(blob)
	if err != nil {
		return nil, err
	}
	chain := breadcrumb.NewChain(identity)
	if len(crumbs) == 0 {
		return chain, nil
	}
	validator := breadcrumb.NewValidator(policy)
	if _, err := validator.Extend(chain, crumbs); err != nil {
		return nil, err
	}
	return chain, nil
}

// profileSnapshot is the on-disk CBOR representation of a
// mobility.Profile's histograms: the profiler itself exposes no
// serialization (its exported API is observation-driven), so Save
// records the normalized, floored HourDensity/WeekdayDensity values
// rather than raw counts. ProfileStore has no method that reads a
// snapshot back.
type profileSnapshot struct {
	HourCounts    [24]float64 `cbor:"0,keyasint"`
	WeekdayCounts [7]float64  `cbor:"1,keyasint"`
}

// ProfileStore persists per-identity mobility profile summaries.
// Anchors and transition counts are not stored: the verifier package
// rebuilds the whole profile, histograms included, by replaying the
// chain from ChainStore.Load the first time it touches an identity,
// and nothing reads the saved snapshot back.
type ProfileStore struct {
	db kv.DB
}

// NewProfileStore wraps db as a ProfileStore.
func NewProfileStore(db kv.DB) *ProfileStore { return &ProfileStore{db: db} }

// Save persists a histogram snapshot of p.
func (s *ProfileStore) Save(identity sign.PublicKey, p *mobility.Profile) error {
	snap := profileSnapshot{}
	for h := 0; h < 24; h++ {
		snap.HourCounts[h] = p.HourDensity(h)
	}
	for w := 0; w < 7; w++ {
		snap.WeekdayCounts[w] = p.WeekdayDensity(w)
	}
	blob, err := encMode.Marshal(snap)
	if err != nil {
		return protocol.Newf(protocol.IOFault, "encoding profile snapshot: %v", err)
	}
	return s.db.Put(profileKey(identity), blob)
}

// KeyStore persists the Verifier's own long-lived Ed25519 signing key.
type KeyStore struct {
	mu sync.Mutex
	db kv.DB
}

// NewKeyStore wraps db as a KeyStore.
func NewKeyStore(db kv.DB) *KeyStore { return &KeyStore{db: db} }

// LoadOrCreate returns the persisted Verifier signing key, generating
// and persisting a fresh one on first run.
func (s *KeyStore) LoadOrCreate() (sign.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seed, err := s.db.Get([]byte(signingKeyRecord))
	if err == nil {
		return sign.NewKeyFromSeed(seed), nil
	}
	if err != s.db.ErrNotFound() {
		return nil, protocol.Newf(protocol.IOFault, "reading verifier signing key: %v", err)
	}

	key, err := sign.GenerateKey()
	if err != nil {
		return nil, protocol.Newf(protocol.IOFault, "generating verifier signing key: %v", err)
	}
	if err := s.db.Put([]byte(signingKeyRecord), key.Seed()); err != nil {
		return nil, protocol.Newf(protocol.IOFault, "persisting verifier signing key: %v", err)
	}
	return key, nil
}

// EpochCounterKey tracks, per identity, the number of epochs sealed so
// far, so the verifier package can resume epoch numbering across
// restarts.
func EpochCounterKey(identity sign.PublicKey) []byte {
	return append([]byte("epoch-count/"), identity...)
}

// ReadEpochCount returns the persisted epoch counter for identity, or 0
// if none has been recorded.
func ReadEpochCount(db kv.DB, identity sign.PublicKey) (uint64, error) {
	blob, err := db.Get(EpochCounterKey(identity))
	if err != nil {
		if err == db.ErrNotFound() {
			return 0, nil
		}
		return 0, protocol.Newf(protocol.IOFault, "reading epoch counter: %v", err)
	}
	if len(blob) != 8 {
		return 0, protocol.Newf(protocol.MalformedEncoding, "epoch counter record has bad length %d", len(blob))
	}
	return binary.BigEndian.Uint64(blob), nil
}

// WriteEpochCount persists the epoch counter for identity.
func WriteEpochCount(db kv.DB, identity sign.PublicKey, count uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count)
	if err := db.Put(EpochCounterKey(identity), buf[:]); err != nil {
		return protocol.Newf(protocol.IOFault, "writing epoch counter: %v", err)
	}
	return nil
}
