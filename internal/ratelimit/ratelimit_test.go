package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	k := New(1, 3, time.Minute)
	key := "identity-a"
	for i := 0; i < 3; i++ {
		if !k.Allow(key) {
			t.Fatalf("request %d within burst should be allowed", i)
		}
	}
	if k.Allow(key) {
		t.Fatal("request beyond burst should be rejected")
	}
}

func TestAllowIsPerKey(t *testing.T) {
	k := New(1, 1, time.Minute)
	if !k.Allow("identity-a") {
		t.Fatal("first request for identity-a should be allowed")
	}
	if !k.Allow("identity-b") {
		t.Fatal("identity-b has its own bucket and should be allowed")
	}
	if k.Allow("identity-a") {
		t.Fatal("identity-a should be exhausted after its first request")
	}
}

func TestReserveReportsRetryAfterWhenExhausted(t *testing.T) {
	k := New(1, 1, time.Minute)
	ok, _ := k.Reserve("identity-a")
	if !ok {
		t.Fatal("first reservation should succeed")
	}
	ok, retryAfter := k.Reserve("identity-a")
	if ok {
		t.Fatal("second immediate reservation should be rejected")
	}
	if retryAfter <= 0 {
		t.Fatalf("retryAfter = %v, want positive", retryAfter)
	}
}

func TestEvictIdleRemovesStaleKeys(t *testing.T) {
	k := New(1, 1, time.Millisecond)
	k.Allow("identity-a")
	k.Allow("identity-b")
	if k.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", k.Count())
	}
	evicted := k.EvictIdle(time.Now().Add(time.Hour))
	if evicted != 2 {
		t.Fatalf("EvictIdle evicted %d, want 2", evicted)
	}
	if k.Count() != 0 {
		t.Fatalf("Count() after eviction = %d, want 0", k.Count())
	}
}

func TestEvictIdleKeepsRecentlyUsedKeys(t *testing.T) {
	k := New(1, 1, time.Hour)
	k.Allow("identity-a")
	evicted := k.EvictIdle(time.Now())
	if evicted != 0 {
		t.Fatalf("EvictIdle evicted %d, want 0", evicted)
	}
	if k.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", k.Count())
	}
}
