// Package ratelimit provides per-identity and per-relying-party token
// buckets for the Verifier's request handlers, grounded on
// _examples/emperorhan-multichain-indexer's golang.org/x/time/rate
// wrapper around a keyed rate.Limiter set.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keyed manages one rate.Limiter per string key (an identity's public
// key hex, or a relying party's connecting address), lazily created on
// first use and evicted after a period of inactivity.
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New returns a Keyed limiter allowing rps requests per second per key,
// with a burst capacity of burst tokens, evicting idle keys after ttl.
func New(rps float64, burst int, ttl time.Duration) *Keyed {
	return &Keyed{
		limiters: make(map[string]*entry),
		rps:      rate.Limit(rps),
		burst:    burst,
		idleTTL:  ttl,
	}
}

// Allow reports whether a request under key is permitted right now,
// consuming one token if so.
func (k *Keyed) Allow(key string) bool {
	return k.limiterFor(key).Allow()
}

// Reserve reports whether a request under key is permitted, and if
// not, how long the caller would need to wait. It consumes a token
// only when the request is allowed: a reservation that would need a
// wait is cancelled, returning its token, and the wait is reported as
// retryAfter, to be surfaced as a RATE_LIMITED rejection rather than
// slept on in the request path (spec.md's Resource conditions are "surfaced
// immediately; no queueing").
func (k *Keyed) Reserve(key string) (allowed bool, retryAfter time.Duration) {
	r := k.limiterFor(key).Reserve()
	if !r.OK() {
		return false, 0
	}
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

func (k *Keyed) limiterFor(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(k.rps, k.burst)}
		k.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// EvictIdle removes limiters that have not been used within the
// configured idle TTL, for periodic cleanup (e.g. driven by the
// server base's epoch timer).
func (k *Keyed) EvictIdle(now time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	evicted := 0
	for key, e := range k.limiters {
		if now.Sub(e.lastSeen) > k.idleTTL {
			delete(k.limiters, key)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of currently tracked keys.
func (k *Keyed) Count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
