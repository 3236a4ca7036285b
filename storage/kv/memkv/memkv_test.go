package memkv

import "testing"

func TestPutGet(t *testing.T) {
	db := New()
	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	v, err := db.Get([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != "1" {
		t.Fatalf("Get = %q, want %q", v, "1")
	}
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	db := New()
	_, err := db.Get([]byte("missing"))
	if err != db.ErrNotFound() {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	db := New()
	db.Put([]byte("a"), []byte("1"))
	db.Delete([]byte("a"))
	if _, err := db.Get([]byte("a")); err != db.ErrNotFound() {
		t.Fatal("deleted key should no longer be found")
	}
}

func TestBatchWrite(t *testing.T) {
	db := New()
	b := db.NewBatch()
	b.Put([]byte("x"), []byte("1"))
	b.Put([]byte("y"), []byte("2"))
	b.Delete([]byte("x"))
	if err := db.Write(b); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get([]byte("x")); err != db.ErrNotFound() {
		t.Fatal("x should have been deleted by the batch")
	}
	v, err := db.Get([]byte("y"))
	if err != nil || string(v) != "2" {
		t.Fatalf("Get(y) = (%q, %v), want (2, nil)", v, err)
	}
}

func TestIteratorOrdersKeys(t *testing.T) {
	db := New()
	db.Put([]byte("b"), []byte("2"))
	db.Put([]byte("a"), []byte("1"))
	db.Put([]byte("c"), []byte("3"))

	it := db.NewIterator(nil)
	var keys []string
	for ok := it.First(); ok; ok = it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("iteration order = %v, want [a b c]", keys)
	}
}
