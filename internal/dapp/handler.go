// Package dapp declares the ABI xCall consumes on the destination
// handler contract. The dApp's own semantics are explicitly out of
// scope for this protocol core (spec §1); this interface is the seam a
// concrete dApp binding implements.
package dapp

import (
	"context"

	"github.com/icon-project/xcall-core/internal/wire"
)

// CallMessageHandler is the sub-invocation xCall's execute_call makes
// into the destination contract. A non-nil error marks the delivery
// failed; for WithRollback requests that becomes a Failure Result, for
// Persisted requests it aborts the whole transaction.
type CallMessageHandler interface {
	HandleCallMessage(ctx context.Context, from wire.NetworkAddress, data []byte, protocols []string) error
}
