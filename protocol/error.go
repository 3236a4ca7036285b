// Package protocol defines the Verifier's wire message types and its
// error taxonomy, following the error-code-plus-message pattern CONIKS
// uses between directory and client.
package protocol

import "fmt"

// Code identifies a kind of failure in the error taxonomy from spec.md
// §7. Codes are grouped by family in the const block below; the family
// determines how the Verifier and the relying party are expected to
// react (fatal, carried-in-verdict, timing, resource, internal).
type Code int

const (
	// Success is not an error; it is the zero value reserved for
	// "no failure occurred" in call sites that thread a Code through.
	Success Code = iota

	// Protocol-input errors. Fatal for the affected operation; never
	// recovered locally.
	MalformedEncoding
	InvalidSignature
	IndexGap
	TimestampRegress
	BrokenLink
	DuplicateCell
	IntervalTooShort
	CellCapExceeded
	NonceReuse
	NonceMismatch
	HeadHashMismatch

	// Insufficient-data conditions. Not failures; carried in the verdict.
	InsufficientData
	BootstrapRegime
	ProvisionalRegime

	// Timing conditions. Surfaced to the relying party; never
	// auto-retried by the Verifier.
	ChallengeTimeout
	DeadlineExceeded

	// Resource conditions. Surfaced immediately; no queueing.
	ResourceExhausted
	RateLimited

	// Internal faults.
	NumericalFailure
	IOFault
)

var codeNames = map[Code]string{
	Success:            "SUCCESS",
	MalformedEncoding:  "MALFORMED_ENCODING",
	InvalidSignature:   "INVALID_SIGNATURE",
	IndexGap:           "INDEX_GAP",
	TimestampRegress:   "TIMESTAMP_REGRESS",
	BrokenLink:         "BROKEN_LINK",
	DuplicateCell:      "DUPLICATE_CELL",
	IntervalTooShort:   "INTERVAL_TOO_SHORT",
	CellCapExceeded:    "CELL_CAP_EXCEEDED",
	NonceReuse:         "NONCE_REUSE",
	NonceMismatch:      "NONCE_MISMATCH",
	HeadHashMismatch:   "HEAD_HASH_MISMATCH",
	InsufficientData:   "INSUFFICIENT_DATA",
	BootstrapRegime:    "BOOTSTRAP_REGIME",
	ProvisionalRegime:  "PROVISIONAL_REGIME",
	ChallengeTimeout:   "CHALLENGE_TIMEOUT",
	DeadlineExceeded:   "DEADLINE_EXCEEDED",
	ResourceExhausted:  "RESOURCE_EXHAUSTED",
	RateLimited:        "RATE_LIMITED",
	NumericalFailure:   "NUMERICAL_FAILURE",
	IOFault:            "IO_FAULT",
}

// String returns the taxonomy name of c, e.g. "BROKEN_LINK".
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_CODE(%d)", int(c))
}

// Error is a typed protocol failure carrying a Code plus contextual
// fields identifying what failed (offending breadcrumb index, cell,
// expected vs. actual values). It implements the error interface.
type Error struct {
	Code    Code
	Index   uint64 // offending breadcrumb index, when applicable
	Cell    uint64 // offending cell id, when applicable
	Detail  string // free-form context, e.g. "expected 7, got 9"
	wrapped error
}

// Newf constructs an Error of the given code with a formatted detail
// message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// AtIndex returns a copy of e annotated with the offending breadcrumb
// index.
func (e *Error) AtIndex(i uint64) *Error {
	c := *e
	c.Index = i
	return &c
}

// AtCell returns a copy of e annotated with the offending cell id.
func (e *Error) AtCell(cell uint64) *Error {
	c := *e
	c.Cell = cell
	return &c
}

// Wrap returns a copy of e recording err as the underlying cause,
// retrievable with errors.Unwrap.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.wrapped = err
	return &c
}

func (e *Error) Error() string {
	switch {
	case e.Index != 0 && e.Detail != "":
		return fmt.Sprintf("trip: %s at index %d: %s", e.Code, e.Index, e.Detail)
	case e.Index != 0:
		return fmt.Sprintf("trip: %s at index %d", e.Code, e.Index)
	case e.Detail != "":
		return fmt.Sprintf("trip: %s: %s", e.Code, e.Detail)
	default:
		return fmt.Sprintf("trip: %s", e.Code)
	}
}

// Unwrap returns the underlying cause, if any, so errors.Is/As work
// against wrapped stdlib or third-party errors.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// CodeOf extracts the Code from err if it is (or wraps) a *Error,
// otherwise it returns IOFault as a conservative default for opaque
// failures crossing a persistence or transport boundary.
func CodeOf(err error) Code {
	var pe *Error
	if asError(err, &pe) {
		return pe.Code
	}
	return IOFault
}

func asError(err error, target **Error) bool {
	for err != nil {
		if pe, ok := err.(*Error); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
