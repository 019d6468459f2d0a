// Package wire implements the RLP wire codec shared by the xCall
// dispatcher and every connection: NetworkAddress, Envelope,
// CSMessageRequest, CSMessageResult and the CSMessage tagged union. The
// same byte layout is exchanged regardless of host runtime; every
// encoder/decoder pair except CallMessagePersisted's is covered by
// round-trip tests.
package wire

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/icon-project/xcall-core/internal/xcallerr"
)

// MessageType mirrors the envelope variant on the wire. The high bit
// (FlagNeedsDataHash) is not a fourth variant: it is OR'd onto one of the
// three base values when the request's data was replaced by its
// keccak256 digest (see PrepareRequestData).
type MessageType uint8

const (
	MessageTypeCallMessage             MessageType = 1
	MessageTypeCallMessageWithRollback MessageType = 2
	MessageTypeCallMessagePersisted    MessageType = 3

	// FlagNeedsDataHash signals that CSMessageRequest.Data carries
	// keccak256(data) rather than data itself, and that the destination
	// must resupply the preimage via execute_call.
	FlagNeedsDataHash MessageType = 0x80
)

// DataThreshold is the byte length above which outbound request data is
// replaced by its hash (data-hash indirection, spec §4.1).
const DataThreshold = 1024

// MaxDataSize and MaxRollbackSize bound send_call's payload sizes.
const (
	MaxDataSize     = 2048
	MaxRollbackSize = 1024
)

// Base strips FlagNeedsDataHash, returning the underlying envelope variant.
func (t MessageType) Base() MessageType { return t &^ FlagNeedsDataHash }

// NeedsDataHash reports whether the high bit is set.
func (t MessageType) NeedsDataHash() bool { return t&FlagNeedsDataHash != 0 }

func (t MessageType) WithDataHash() MessageType { return t | FlagNeedsDataHash }

// PrepareRequestData applies data-hash indirection: data longer than
// DataThreshold is replaced by its keccak256 digest and the flag return
// value is true. Callers OR the flag into the request's MessageType.
func PrepareRequestData(data []byte) (outData []byte, needsHash bool) {
	if len(data) > DataThreshold {
		h := crypto.Keccak256(data)
		return h, true
	}
	return data, false
}

// CallMessage is the one-way envelope payload: [data].
type CallMessage struct {
	Data []byte
}

// CallMessageWithRollback adds a rollback payload replayed on the source
// chain when the destination handler fails: [data, rollback].
type CallMessageWithRollback struct {
	Data     []byte
	Rollback []byte
}

// CallMessagePersisted is wire-identical to CallMessage ([data]) but
// carries different delivery semantics: handler failure aborts the
// delivery transaction rather than producing a Result.
type CallMessagePersisted struct {
	Data []byte
}

func EncodeCallMessage(m CallMessage) ([]byte, error) {
	return rlp.EncodeToBytes(&m)
}

func DecodeCallMessage(b []byte) (CallMessage, error) {
	var m CallMessage
	if err := rlp.DecodeBytes(b, &m); err != nil {
		return CallMessage{}, fewrap(err)
	}
	return m, nil
}

func EncodeCallMessageWithRollback(m CallMessageWithRollback) ([]byte, error) {
	return rlp.EncodeToBytes(&m)
}

func DecodeCallMessageWithRollback(b []byte) (CallMessageWithRollback, error) {
	var m CallMessageWithRollback
	if err := rlp.DecodeBytes(b, &m); err != nil {
		return CallMessageWithRollback{}, fewrap(err)
	}
	return m, nil
}

func EncodeCallMessagePersisted(m CallMessagePersisted) ([]byte, error) {
	return rlp.EncodeToBytes(&m)
}

func DecodeCallMessagePersisted(b []byte) (CallMessagePersisted, error) {
	var m CallMessagePersisted
	if err := rlp.DecodeBytes(b, &m); err != nil {
		return CallMessagePersisted{}, fewrap(err)
	}
	return m, nil
}

// Envelope is the input to send_call: a tagged message plus the ordered
// connections to fan the request out across (Sources) and the connections
// expected on the destination side (Destinations, informational only).
type Envelope struct {
	MessageType  uint8
	Message      []byte
	Sources      []string
	Destinations []string
}

func EncodeEnvelope(e Envelope) ([]byte, error) {
	return rlp.EncodeToBytes(&e)
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := rlp.DecodeBytes(b, &e); err != nil {
		return Envelope{}, fewrap(err)
	}
	return e, nil
}

// CSMessageRequest is the wire form of a cross-chain request, carried
// inside a CSMessage with Tag == TagRequest.
type CSMessageRequest struct {
	From      NetworkAddress
	To        string
	Sn        *big.Int
	Type      uint8
	Data      []byte
	Protocols []string
}

func EncodeCSMessageRequest(r CSMessageRequest) ([]byte, error) {
	return rlp.EncodeToBytes(&r)
}

func DecodeCSMessageRequest(b []byte) (CSMessageRequest, error) {
	var r CSMessageRequest
	if err := rlp.DecodeBytes(b, &r); err != nil {
		return CSMessageRequest{}, fewrap(err)
	}
	return r, nil
}

// RequestHashWithoutProtocols returns keccak256 of the request encoded
// with an empty Protocols slice: the key pending-request/response tables
// use to recognise independent deliveries of the same logical message.
func (r CSMessageRequest) RequestHashWithoutProtocols() ([32]byte, error) {
	stripped := r
	stripped.Protocols = nil
	b, err := EncodeCSMessageRequest(stripped)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256Hash(b), nil
}

// ResultCode mirrors CSMessageResult.Code.
type ResultCode uint8

const (
	ResultFailure ResultCode = 0
	ResultSuccess ResultCode = 1
)

// CSMessageResult is the wire form of a response to a WithRollback
// request, carried inside a CSMessage with Tag == TagResult.
type CSMessageResult struct {
	Sn   *big.Int
	Code uint8
	Msg  []byte
}

func EncodeCSMessageResult(r CSMessageResult) ([]byte, error) {
	return rlp.EncodeToBytes(&r)
}

func DecodeCSMessageResult(b []byte) (CSMessageResult, error) {
	var r CSMessageResult
	if err := rlp.DecodeBytes(b, &r); err != nil {
		return CSMessageResult{}, fewrap(err)
	}
	return r, nil
}

func (r CSMessageResult) Hash() ([32]byte, error) {
	b, err := EncodeCSMessageResult(r)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256Hash(b), nil
}

// Tag discriminates the two CSMessage variants on the wire.
type Tag uint8

const (
	TagRequest Tag = 1
	TagResult  Tag = 2
)

// CSMessage is the outermost envelope every connection exchanges:
// [tag, payload] where payload is the RLP encoding of a
// CSMessageRequest or a CSMessageResult.
type CSMessage struct {
	Tag     uint8
	Payload []byte
}

func NewCSMessageFromRequest(r CSMessageRequest) (CSMessage, error) {
	b, err := EncodeCSMessageRequest(r)
	if err != nil {
		return CSMessage{}, err
	}
	return CSMessage{Tag: uint8(TagRequest), Payload: b}, nil
}

func NewCSMessageFromResult(r CSMessageResult) (CSMessage, error) {
	b, err := EncodeCSMessageResult(r)
	if err != nil {
		return CSMessage{}, err
	}
	return CSMessage{Tag: uint8(TagResult), Payload: b}, nil
}

func EncodeCSMessage(m CSMessage) ([]byte, error) {
	return rlp.EncodeToBytes(&m)
}

func DecodeCSMessage(b []byte) (CSMessage, error) {
	var m CSMessage
	if err := rlp.DecodeBytes(b, &m); err != nil {
		return CSMessage{}, fewrap(err)
	}
	if m.Tag != uint8(TagRequest) && m.Tag != uint8(TagResult) {
		return CSMessage{}, xcallerr.ErrInvalidPayload
	}
	return m, nil
}

// AsRequest decodes Payload as a CSMessageRequest. Caller must have
// checked Tag == TagRequest.
func (m CSMessage) AsRequest() (CSMessageRequest, error) {
	return DecodeCSMessageRequest(m.Payload)
}

// AsResult decodes Payload as a CSMessageResult. Caller must have checked
// Tag == TagResult.
func (m CSMessage) AsResult() (CSMessageResult, error) {
	return DecodeCSMessageResult(m.Payload)
}

// fewrap normalises any RLP decode failure (arity, type, non-canonical
// int encoding) to the shared InvalidPayload taxonomy entry.
func fewrap(err error) error {
	if err == nil {
		return nil
	}
	return &xcallWrapErr{err}
}

type xcallWrapErr struct{ inner error }

func (e *xcallWrapErr) Error() string { return xcallerr.ErrInvalidPayload.Error() + ": " + e.inner.Error() }
func (e *xcallWrapErr) Unwrap() error { return xcallerr.ErrInvalidPayload }
