package xcall

import (
	"context"
	"math/big"
)

// FeeLedger credits send_call's fees: the protocol fee to the configured
// fee_handler, and each source connection's fee to that connection's
// registered name. Actual token movement is a chain-specific
// primitive (spec §1 Non-goals: "fee-token transfer primitives"); this
// interface is the seam a concrete host binding wires to its own asset.
// A nil FeeLedger makes fee routing a no-op, which is what the in-memory
// test dispatcher uses.
type FeeLedger interface {
	Charge(ctx context.Context, payer string, amount *big.Int, creditTo string) error
}

// routeProtocolFee credits fee from payer to creditTo (send_call uses it
// for the protocol_fee to fee_handler and for each connection's own fee),
// skipping entirely when either the ledger is unset or the fee is zero.
func (d *Dispatcher) routeProtocolFee(ctx context.Context, payer string, fee *big.Int, feeHandler string) error {
	if d.fees == nil || fee == nil || fee.Sign() <= 0 {
		return nil
	}
	return d.fees.Charge(ctx, payer, fee, feeHandler)
}
