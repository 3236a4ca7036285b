// Package memkv implements the storage/kv.DB interface entirely
// in-memory, for tests and for the Verifier's bootstrap/no-persistence
// mode (adapted from the teacher's leveldbkv, which this package
// mirrors the shape of without a backing file).
package memkv

import (
	"errors"
	"sort"
	"sync"

	"github.com/GNS-Foundation/trip-protocol/storage/kv"
)

var errNotFound = errors.New("memkv: not found")

// DB is a sorted, in-memory key-value store safe for concurrent use.
type DB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty in-memory DB.
func New() *DB {
	return &DB{data: make(map[string][]byte)}
}

func (db *DB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.data[string(key)]
	if !ok {
		return nil, errNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (db *DB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	db.data[string(key)] = v
	return nil
}

func (db *DB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

func (db *DB) NewBatch() kv.Batch {
	return &batch{}
}

func (db *DB) Write(b kv.Batch) error {
	mb, ok := b.(*batch)
	if !ok {
		return errors.New("memkv: unexpected batch type")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, op := range mb.ops {
		if op.delete {
			delete(db.data, op.key)
			continue
		}
		v := make([]byte, len(op.value))
		copy(v, op.value)
		db.data[op.key] = v
	}
	return nil
}

func (db *DB) NewIterator(rg *kv.Range) kv.Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	keys := make([]string, 0, len(db.data))
	for k := range db.data {
		if inRange(rg, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	return &iterator{db: db, keys: keys, pos: -1}
}

func inRange(rg *kv.Range, key string) bool {
	if rg == nil {
		return true
	}
	if rg.Start != nil && key < string(rg.Start) {
		return false
	}
	if rg.Limit != nil && key >= string(rg.Limit) {
		return false
	}
	return true
}

func (db *DB) Close() error { return nil }

func (db *DB) ErrNotFound() error { return errNotFound }

type batchOp struct {
	key    string
	value  []byte
	delete bool
}

type batch struct {
	ops []batchOp
}

func (b *batch) Reset() { b.ops = nil }

func (b *batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: string(key), value: append([]byte{}, value...)})
}

func (b *batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: string(key), delete: true})
}

type iterator struct {
	db   *DB
	keys []string
	pos  int
}

func (it *iterator) First() bool {
	if len(it.keys) == 0 {
		return false
	}
	it.pos = 0
	return true
}

func (it *iterator) Next() bool {
	if it.pos+1 >= len(it.keys) {
		it.pos = len(it.keys)
		return false
	}
	it.pos++
	return true
}

func (it *iterator) Last() bool {
	if len(it.keys) == 0 {
		return false
	}
	it.pos = len(it.keys) - 1
	return true
}

func (it *iterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.pos])
}

func (it *iterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	it.db.mu.RLock()
	defer it.db.mu.RUnlock()
	return it.db.data[it.keys[it.pos]]
}

func (it *iterator) Release() {}

func (it *iterator) Error() error { return nil }
