package protocol

import (
	"encoding/binary"
	"encoding/json"

	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
)

// NonceSize is the length in bytes of a relying-party nonce, per
// spec.md §3/§6.
const NonceSize = 16

// The types of requests sent to the Verifier: breadcrumb submissions
// from an Attester, and verification/cancel requests from a relying
// party.
const (
	SubmissionRequestType = iota
	VerificationRequestType
	ChallengeResponseType
	CancelRequestType
)

// A Request is the envelope a relying party sends to the Verifier,
// mirroring the CONIKS client/server Request{Type, Request} envelope.
type Request struct {
	Type int
	Body interface{}
}

// A Response is the envelope the Verifier returns to a relying party.
type Response struct {
	Error Code
	Body  interface{} `json:",omitempty"`
}

// SubmissionRequest carries one Attester's next batch of breadcrumbs,
// CBOR-encoded per breadcrumb.DecodeAll, appended to its chain by the
// Chain Validator before any verification runs against it.
type SubmissionRequest struct {
	Identity        sign.PublicKey
	EncodedBreadcrumbs []byte
}

// VerificationRequest is sent by a relying party to begin the active
// verification protocol against a given identity's chain.
type VerificationRequest struct {
	Identity               sign.PublicKey
	Nonce                  [NonceSize]byte
	RequestTimestamp       int64
	FreshnessWindowSeconds uint32
}

// CancelRequest withdraws an outstanding challenge identified by its
// nonce.
type CancelRequest struct {
	Identity sign.PublicKey
	Nonce    [NonceSize]byte
}

// LivenessChallenge is delivered to the Attester over the side channel
// once the Verifier has accepted a VerificationRequest.
type LivenessChallenge struct {
	Nonce                   [NonceSize]byte
	VerifierIdentity        sign.PublicKey
	ChallengeTimestamp      int64
	ResponseDeadlineSeconds uint32
}

// LivenessResponse is the Attester's signed reply to a LivenessChallenge.
// The signature in field 4 is computed over the canonical encoding of
// fields 0..3, per spec.md §6.
type LivenessResponse struct {
	NonceEcho        [NonceSize]byte
	ChainHeadHash    [32]byte
	ResponseTimestamp int64
	CurrentIndex     uint64
	Signature        []byte
}

// SignableFields returns the deterministic byte encoding of fields 0..3
// of a LivenessResponse, i.e. everything but the signature itself. Both
// the Attester (to produce the signature) and the Verifier (to verify
// it) must compute this identically.
func (r *LivenessResponse) SignableFields() []byte {
	buf := make([]byte, 0, NonceSize+32+8+8)
	buf = append(buf, r.NonceEcho[:]...)
	buf = append(buf, r.ChainHeadHash[:]...)
	buf = appendUint64(buf, uint64(r.ResponseTimestamp))
	buf = appendUint64(buf, r.CurrentIndex)
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// MarshalRequest returns a JSON encoding of a relying party's request,
// following the CONIKS application layer's envelope-marshalling pattern.
func MarshalRequest(reqType int, body interface{}) ([]byte, error) {
	return json.Marshal(&Request{Type: reqType, Body: body})
}

// UnmarshalRequest decodes msg into the concrete request type named by
// its Type field.
func UnmarshalRequest(msg []byte) (*Request, error) {
	var raw struct {
		Type int
		Body json.RawMessage
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, Newf(MalformedEncoding, "request envelope: %v", err)
	}
	var body interface{}
	switch raw.Type {
	case SubmissionRequestType:
		body = new(SubmissionRequest)
	case VerificationRequestType:
		body = new(VerificationRequest)
	case ChallengeResponseType:
		body = new(LivenessResponse)
	case CancelRequestType:
		body = new(CancelRequest)
	default:
		return nil, Newf(MalformedEncoding, "unknown request type %d", raw.Type)
	}
	if err := json.Unmarshal(raw.Body, body); err != nil {
		return nil, Newf(MalformedEncoding, "request body: %v", err)
	}
	return &Request{Type: raw.Type, Body: body}, nil
}

// MarshalResponse returns a JSON encoding of the Verifier's response.
func MarshalResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// NewErrorResponse builds a Response carrying only an error code, for
// the cases in spec.md §7 where no verdict or certificate body is
// produced.
func NewErrorResponse(code Code) *Response {
	return &Response{Error: code}
}
