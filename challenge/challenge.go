// Package challenge implements the Challenge Coordinator: the active
// verification protocol's nonce-bound liveness challenge/response
// state machine, per spec.md §4.8.
package challenge

import (
	"bytes"
	"time"

	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
	"github.com/GNS-Foundation/trip-protocol/protocol"
)

// State is one of a challenge's externally visible states, plus the
// internal EVALUATING sub-state folded in per SPEC_FULL.md's
// adaptation of original_source/verification.rs's SessionState enum
// (spec.md §5's "consistent snapshot" requirement implies a real, if
// brief, evaluation phase between RESPONDED and certificate issuance).
type State string

const (
	StateRequested  State = "REQUESTED"
	StateChallenged State = "CHALLENGED"
	StateResponded  State = "RESPONDED"
	StateEvaluating State = "EVALUATING"
	StateComplete   State = "COMPLETE"
	StateTimedOut   State = "TIMED_OUT"
	StateCancelled  State = "CANCELLED"
)

// DefaultDeadline and MaxDeadline bound the response window the
// Coordinator grants an Attester: Deliver uses DefaultDeadline when it
// is given a non-positive deadline and clamps longer ones to
// MaxDeadline.
const (
	DefaultDeadline = 30 * time.Second
	MaxDeadline     = 1 * time.Hour
)

// Challenge is one outstanding challenge's full state.
type Challenge struct {
	Nonce       [protocol.NonceSize]byte
	Identity    sign.PublicKey
	State       State
	RequestedAt time.Time
	ChallengedAt time.Time
	Deadline    time.Time
	Response    *protocol.LivenessResponse
	FailReason  protocol.Code
}

// Coordinator tracks outstanding challenges, enforcing a single
// in-flight challenge per identity (spec.md §4.8 implies one active
// verification at a time per identity via the challenge-state
// ownership model in spec.md §3).
type Coordinator struct {
	byNonce    map[[protocol.NonceSize]byte]*Challenge
	byIdentity map[string]*Challenge
}

// NewCoordinator returns an empty Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		byNonce:    make(map[[protocol.NonceSize]byte]*Challenge),
		byIdentity: make(map[string]*Challenge),
	}
}

func identityKey(id sign.PublicKey) string { return string(id) }

// Request opens a new challenge for identity bound to nonce, moving it
// to REQUESTED. It fails if the identity already has an in-flight
// challenge.
func (c *Coordinator) Request(identity sign.PublicKey, nonce [protocol.NonceSize]byte, now time.Time) (*Challenge, error) {
	key := identityKey(identity)
	if existing, ok := c.byIdentity[key]; ok && isInFlight(existing.State) {
		return nil, protocol.Newf(protocol.ResourceExhausted, "identity already has an in-flight challenge")
	}
	if _, ok := c.byNonce[nonce]; ok {
		return nil, protocol.Newf(protocol.NonceReuse, "nonce already in use")
	}
	ch := &Challenge{
		Nonce:       nonce,
		Identity:    identity,
		State:       StateRequested,
		RequestedAt: now,
	}
	c.byNonce[nonce] = ch
	c.byIdentity[key] = ch
	return ch, nil
}

func isInFlight(s State) bool {
	return s == StateRequested || s == StateChallenged || s == StateResponded || s == StateEvaluating
}

// Deliver transitions a REQUESTED challenge to CHALLENGED, setting its
// wall-clock deadline.
func (c *Coordinator) Deliver(nonce [protocol.NonceSize]byte, now time.Time, deadline time.Duration) (*Challenge, error) {
	ch, ok := c.byNonce[nonce]
	if !ok {
		return nil, protocol.Newf(protocol.MalformedEncoding, "unknown challenge nonce")
	}
	if ch.State != StateRequested {
		return nil, protocol.Newf(protocol.MalformedEncoding, "challenge not in REQUESTED state")
	}
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	if deadline > MaxDeadline {
		deadline = MaxDeadline
	}
	ch.State = StateChallenged
	ch.ChallengedAt = now
	ch.Deadline = now.Add(deadline)
	return ch, nil
}

// ValidationInputs are the values the Verifier independently knows and
// must cross-check a LivenessResponse against, per spec.md §4.8.
type ValidationInputs struct {
	VerifierHeadHash [32]byte
	VerifierIndex    uint64
}

// Respond validates and records an Attester's response per spec.md
// §4.8: the nonce must echo byte-for-byte, the signature must verify
// over SignableFields, the chain-head hash must match the Verifier's
// last stored head hash, the current index must be ≥ the Verifier's
// last known index, and the response timestamp must fall within
// [challenge_timestamp, deadline].
func (c *Coordinator) Respond(resp *protocol.LivenessResponse, now time.Time, in ValidationInputs) (*Challenge, error) {
	ch, ok := c.byNonce[resp.NonceEcho]
	if !ok {
		return nil, protocol.Newf(protocol.NonceMismatch, "response echoes an unknown nonce")
	}
	if ch.State != StateChallenged {
		return nil, protocol.Newf(protocol.MalformedEncoding, "challenge not awaiting a response")
	}
	if !bytes.Equal(ch.Nonce[:], resp.NonceEcho[:]) {
		return nil, protocol.Newf(protocol.NonceMismatch, "nonce does not match the outstanding challenge")
	}
	if now.After(ch.Deadline) {
		c.fail(ch, protocol.ChallengeTimeout)
		return ch, protocol.Newf(protocol.ChallengeTimeout, "response received after the deadline")
	}
	if !ch.Identity.Verify(resp.SignableFields(), resp.Signature) {
		return nil, protocol.Newf(protocol.InvalidSignature, "liveness response signature does not verify")
	}
	if !bytes.Equal(resp.ChainHeadHash[:], in.VerifierHeadHash[:]) {
		return nil, protocol.Newf(protocol.HeadHashMismatch, "response chain-head hash does not match")
	}
	if resp.CurrentIndex < in.VerifierIndex {
		return nil, protocol.Newf(protocol.IndexGap, "response index is behind the Verifier's last known index")
	}
	// The Attester sees the challenge timestamp in whole seconds, so the
	// window opens at the start of the second the challenge was delivered.
	responseTime := time.Unix(resp.ResponseTimestamp, 0)
	if responseTime.Before(ch.ChallengedAt.Truncate(time.Second)) || responseTime.After(ch.Deadline) {
		return nil, protocol.Newf(protocol.DeadlineExceeded, "response timestamp outside the challenge window")
	}

	ch.Response = resp
	ch.State = StateResponded
	return ch, nil
}

// Evaluate moves a RESPONDED challenge into EVALUATING, the brief
// internal window during which the Criticality Engine assembles a
// consistent Verdict snapshot before certificate issuance.
func (c *Coordinator) Evaluate(nonce [protocol.NonceSize]byte) (*Challenge, error) {
	ch, ok := c.byNonce[nonce]
	if !ok {
		return nil, protocol.Newf(protocol.MalformedEncoding, "unknown challenge nonce")
	}
	if ch.State != StateResponded {
		return nil, protocol.Newf(protocol.MalformedEncoding, "challenge not in RESPONDED state")
	}
	ch.State = StateEvaluating
	return ch, nil
}

// Complete finalizes an EVALUATING challenge, after which the
// Certificate Issuer has produced (or failed to produce) a
// certificate.
func (c *Coordinator) Complete(nonce [protocol.NonceSize]byte) (*Challenge, error) {
	ch, ok := c.byNonce[nonce]
	if !ok {
		return nil, protocol.Newf(protocol.MalformedEncoding, "unknown challenge nonce")
	}
	if ch.State != StateEvaluating {
		return nil, protocol.Newf(protocol.MalformedEncoding, "challenge not in EVALUATING state")
	}
	ch.State = StateComplete
	c.release(ch)
	return ch, nil
}

// Cancel withdraws an outstanding challenge at the relying party's
// request.
func (c *Coordinator) Cancel(nonce [protocol.NonceSize]byte) (*Challenge, error) {
	ch, ok := c.byNonce[nonce]
	if !ok {
		return nil, protocol.Newf(protocol.MalformedEncoding, "unknown challenge nonce")
	}
	if !isInFlight(ch.State) {
		return nil, protocol.Newf(protocol.MalformedEncoding, "challenge already terminal")
	}
	ch.State = StateCancelled
	c.release(ch)
	return ch, nil
}

// SweepTimeouts transitions any CHALLENGED challenge whose deadline has
// elapsed to TIMED_OUT. Callers are expected to invoke this
// periodically (e.g. from the server base's epoch timer).
func (c *Coordinator) SweepTimeouts(now time.Time) []*Challenge {
	var timedOut []*Challenge
	for _, ch := range c.byNonce {
		if ch.State == StateChallenged && now.After(ch.Deadline) {
			c.fail(ch, protocol.ChallengeTimeout)
			timedOut = append(timedOut, ch)
		}
	}
	return timedOut
}

func (c *Coordinator) fail(ch *Challenge, reason protocol.Code) {
	ch.State = StateTimedOut
	ch.FailReason = reason
	c.release(ch)
}

// release destroys the challenge's state once it reaches a terminal
// outcome, per spec.md §3: "Destroyed on completion, timeout, or
// cancellation."
func (c *Coordinator) release(ch *Challenge) {
	delete(c.byNonce, ch.Nonce)
	if current, ok := c.byIdentity[identityKey(ch.Identity)]; ok && current == ch {
		delete(c.byIdentity, identityKey(ch.Identity))
	}
}

// Lookup returns the outstanding challenge for nonce, if any.
func (c *Coordinator) Lookup(nonce [protocol.NonceSize]byte) (*Challenge, bool) {
	ch, ok := c.byNonce[nonce]
	return ch, ok
}
