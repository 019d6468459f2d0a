package xcall

import (
	"context"
	"math/big"

	"github.com/icon-project/xcall-core/internal/wire"
	"github.com/icon-project/xcall-core/internal/xcallerr"
)

// ExecuteRollback replays a WithRollback request's rollback payload back
// into the original caller once its Result has enabled it (spec §4.4).
// A handler failure here is terminal: the record is still removed, and
// the outcome is only surfaced through the RollbackExecuted event — there
// is no further retry path once a rollback has been attempted.
func (d *Dispatcher) ExecuteRollback(ctx context.Context, caller string, sn *big.Int) error {
	cfg, err := d.requireConfig(ctx)
	if err != nil {
		return err
	}

	rb, found, err := d.store.GetRollback(ctx, sn)
	if err != nil {
		return err
	}
	if !found {
		return xcallerr.ErrCallRequestNotFound
	}
	if !rb.Enabled {
		return xcallerr.ErrRollbackNotEnabled
	}
	if caller != rb.From {
		return xcallerr.ErrOnlyCaller
	}

	handler, ok := d.dappByAccount(rb.From)
	if !ok {
		return xcallerr.ErrInvalidPayload
	}

	self := wire.NewNetworkAddress(cfg.NetworkID, d.selfAccount)
	callErr := handler.HandleCallMessage(ctx, self, rb.Data, rb.Sources)

	if err := d.store.DeleteRollback(ctx, sn); err != nil {
		return err
	}

	code := uint8(1)
	if callErr != nil {
		code = 0
	}
	d.metrics.RollbackExecuted(callErr == nil)
	d.emit(RollbackExecutedEvent{Sn: sn, Code: code})
	return nil
}
