package xcall

import (
	"context"
	"math/big"

	"github.com/icon-project/xcall-core/internal/store"
	"github.com/icon-project/xcall-core/internal/wire"
	"github.com/icon-project/xcall-core/internal/xcallerr"
)

// HandleMessage is the inbound entry point every connection calls once a
// payload has cleared its own admission checks (signature threshold,
// duplicate-receipt guard). It implements the Request/Result branching
// and multi-protocol commit-only-when-all-delivered rule (spec §4.2,
// invariant 5).
func (d *Dispatcher) HandleMessage(ctx context.Context, fromNid string, callerConnection string, payload []byte) error {
	if _, err := d.requireConfig(ctx); err != nil {
		return err
	}

	csMsg, err := wire.DecodeCSMessage(payload)
	if err != nil {
		return err
	}

	switch wire.Tag(csMsg.Tag) {
	case wire.TagRequest:
		req, err := csMsg.AsRequest()
		if err != nil {
			return err
		}
		return d.handleRequest(ctx, fromNid, callerConnection, req)
	case wire.TagResult:
		res, err := csMsg.AsResult()
		if err != nil {
			return err
		}
		return d.handleResult(ctx, callerConnection, res)
	default:
		return xcallerr.ErrInvalidPayload
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, fromNid, callerConnection string, req wire.CSMessageRequest) error {
	if req.From.NetID != fromNid {
		return xcallerr.ErrProtocolViolation
	}
	if err := d.authorizeConnection(ctx, fromNid, callerConnection, req.Protocols); err != nil {
		return err
	}

	if len(req.Protocols) <= 1 {
		return d.commitRequest(ctx, req, callerConnection)
	}

	key, err := req.RequestHashWithoutProtocols()
	if err != nil {
		return err
	}
	remaining, found, err := d.store.GetPendingRequest(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		remaining = req.Protocols
	}
	remaining = without(remaining, callerConnection)
	if len(remaining) == 0 {
		if err := d.store.DeletePendingRequest(ctx, key); err != nil {
			return err
		}
		return d.commitRequest(ctx, req, callerConnection)
	}
	return d.store.PutPendingRequest(ctx, key, remaining)
}

// authorizeConnection enforces that callerConnection is either this
// network's registered default connection, or one of the protocols the
// request itself names — the same check handle_message applies before
// touching the pending-request table.
func (d *Dispatcher) authorizeConnection(ctx context.Context, fromNid, callerConnection string, protocols []string) error {
	if def, ok, err := d.store.GetDefaultConnection(ctx, fromNid); err != nil {
		return err
	} else if ok && def == callerConnection {
		return nil
	}
	if contains(protocols, callerConnection) {
		return nil
	}
	return xcallerr.ErrProtocolViolation
}

func (d *Dispatcher) commitRequest(ctx context.Context, req wire.CSMessageRequest, owner string) error {
	reqID, err := d.store.NextReqID(ctx)
	if err != nil {
		return err
	}
	pr := store.ProxyRequest{
		From:       req.From.String(),
		To:         req.To,
		Sn:         req.Sn,
		ReqType:    req.Type,
		Data:       req.Data,
		DataIsHash: wire.MessageType(req.Type).NeedsDataHash(),
		Protocols:  req.Protocols,
		Owner:      owner,
	}
	if err := d.store.PutProxyRequest(ctx, reqID, pr); err != nil {
		return err
	}
	d.metrics.RequestCommitted()
	d.emit(CallMessageEvent{From: pr.From, To: pr.To, Sn: pr.Sn, ReqID: reqID, Data: req.Data})
	return nil
}

func (d *Dispatcher) handleResult(ctx context.Context, callerConnection string, res wire.CSMessageResult) error {
	rb, found, err := d.store.GetRollback(ctx, res.Sn)
	if err != nil {
		return err
	}
	if !found {
		return xcallerr.ErrCallRequestNotFound
	}

	if len(rb.Sources) > 1 {
		key, err := res.Hash()
		if err != nil {
			return err
		}
		remaining, found, err := d.store.GetPendingResponse(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			remaining = rb.Sources
		}
		remaining = without(remaining, callerConnection)
		if len(remaining) > 0 {
			return d.store.PutPendingResponse(ctx, key, remaining)
		}
		if err := d.store.DeletePendingResponse(ctx, key); err != nil {
			return err
		}
	}

	d.emit(ResponseMessageEvent{Sn: res.Sn, Code: res.Code})

	switch wire.ResultCode(res.Code) {
	case wire.ResultSuccess:
		if err := d.store.DeleteRollback(ctx, res.Sn); err != nil {
			return err
		}
		if len(res.Msg) > 0 {
			return d.commitPiggybackedReply(ctx, callerConnection, res.Msg)
		}
		return nil
	case wire.ResultFailure:
		rb.Enabled = true
		if err := d.store.PutRollback(ctx, res.Sn, rb); err != nil {
			return err
		}
		d.metrics.RollbackEnabled()
		d.emit(RollbackMessageEvent{Sn: res.Sn})
		return nil
	default:
		return xcallerr.ErrInvalidPayload
	}
}

// commitPiggybackedReply decodes a CSMessageRequest carried in a
// successful Result's Msg field and commits it directly, bypassing the
// multi-protocol pending-request aggregation: the Result that carries it
// has already cleared that connection's own delivery guarantees.
func (d *Dispatcher) commitPiggybackedReply(ctx context.Context, callerConnection string, msg []byte) error {
	req, err := wire.DecodeCSMessageRequest(msg)
	if err != nil {
		return err
	}
	return d.commitRequest(ctx, req, callerConnection)
}

// HandleError lets a connection synthesize a Failure Result for a sn it
// knows it can no longer deliver a genuine response for (e.g. the
// Centralized connection's revert_message admin escape hatch).
func (d *Dispatcher) HandleError(ctx context.Context, callerConnection string, sn *big.Int) error {
	return d.handleResult(ctx, callerConnection, wire.CSMessageResult{
		Sn:   sn,
		Code: uint8(wire.ResultFailure),
	})
}
