// Package connection declares the Connection ABI xCall consumes (spec
// §6) and the ReplyMode convention for send_message's sn argument
// (supplemented from the Solana program's explicit state enum, see
// SPEC_FULL.md §12).
package connection

import (
	"context"
	"math/big"
)

// ReplyMode tells a connection what reply path, if any, the dispatcher
// expects for this outbound message. It replaces a bare sign-convention
// int64 so call sites can't confuse "no reply" with "awaiting sn 0".
type ReplyMode int64

const (
	// ReplyModePersisted marks a CallMessagePersisted send: the relayer
	// must not synthesize a Failure Result back for this message.
	ReplyModePersisted ReplyMode = -1
	// ReplyModeNone marks a one-way CallMessage send: no reply path.
	ReplyModeNone ReplyMode = 0
	// ReplyModeResult marks a Result (response) send on the reply path
	// back to the source chain: fee-exempt regardless of the original
	// sn, since the source already paid for delivery up front.
	ReplyModeResult ReplyMode = -2
)

// ReplyModeForSn wraps a rollback sequence number as the reply mode a
// WithRollback send expects a Result back on.
func ReplyModeForSn(sn *big.Int) ReplyMode {
	return ReplyMode(sn.Int64())
}

func (m ReplyMode) Int64() int64 { return int64(m) }

// Connection is the transport ABI every connection module (Centralized,
// Cluster, ...) implements and xCall's dispatcher calls against.
type Connection interface {
	// SendMessage fans an encoded CSMessage out to the named destination
	// network. mode carries the sn sign convention from spec §4.2.
	SendMessage(ctx context.Context, to string, mode ReplyMode, msg []byte) error

	// GetFee quotes the cost of delivering one message to to, optionally
	// including the cost of a guaranteed response path.
	GetFee(ctx context.Context, to string, needResponse bool) (*big.Int, error)
}

// MessageHandler is the callback a connection invokes on the dispatcher
// once a message has cleared the connection's own admission checks
// (duplicate-receipt guard, signature threshold, ...).
type MessageHandler interface {
	HandleMessage(ctx context.Context, fromNid string, callerConnection string, payload []byte) error
}
