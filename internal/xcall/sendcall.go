package xcall

import (
	"context"
	"math/big"

	"github.com/icon-project/xcall-core/internal/connection"
	"github.com/icon-project/xcall-core/internal/store"
	"github.com/icon-project/xcall-core/internal/wire"
	"github.com/icon-project/xcall-core/internal/xcallerr"
)

// SendCall is the outbound entry point a dApp binding calls to dispatch
// an Envelope to a destination network (spec §4.1). callerIsContract
// must be supplied by the host binding: account-model distinctions are
// out of this protocol core's scope (SPEC_FULL.md Non-goals), but a
// WithRollback send still requires a callback-capable caller.
func (d *Dispatcher) SendCall(ctx context.Context, caller string, callerIsContract bool, env wire.Envelope, to wire.NetworkAddress) (*big.Int, error) {
	cfg, err := d.requireConfig(ctx)
	if err != nil {
		return nil, err
	}

	msgType := wire.MessageType(env.MessageType)
	var data, rollback []byte
	switch msgType {
	case wire.MessageTypeCallMessage:
		m, err := wire.DecodeCallMessage(env.Message)
		if err != nil {
			return nil, err
		}
		data = m.Data
	case wire.MessageTypeCallMessageWithRollback:
		if !callerIsContract {
			return nil, xcallerr.ErrNoRollbackData
		}
		m, err := wire.DecodeCallMessageWithRollback(env.Message)
		if err != nil {
			return nil, err
		}
		data, rollback = m.Data, m.Rollback
		if len(rollback) > wire.MaxRollbackSize {
			return nil, xcallerr.ErrMaxRollbackSizeExceeded
		}
	case wire.MessageTypeCallMessagePersisted:
		m, err := wire.DecodeCallMessagePersisted(env.Message)
		if err != nil {
			return nil, err
		}
		data = m.Data
	default:
		return nil, xcallerr.ErrInvalidPayload
	}
	if len(data) > wire.MaxDataSize {
		return nil, xcallerr.ErrMaxDataSizeExceeded
	}

	sources, err := d.resolveSources(ctx, env.Sources, to.NetID)
	if err != nil {
		return nil, err
	}

	sn, err := d.store.NextSn(ctx)
	if err != nil {
		return nil, err
	}
	d.metrics.SequenceHighWater(float64(sn.Int64()))

	outData, needsHash := wire.PrepareRequestData(data)
	wireType := msgType
	if needsHash {
		wireType = wireType.WithDataHash()
	}

	req := wire.CSMessageRequest{
		From:      wire.NewNetworkAddress(cfg.NetworkID, caller),
		To:        to.Account,
		Sn:        sn,
		Type:      uint8(wireType),
		Data:      outData,
		Protocols: env.Destinations,
	}
	csMsg, err := wire.NewCSMessageFromRequest(req)
	if err != nil {
		return nil, err
	}
	payload, err := wire.EncodeCSMessage(csMsg)
	if err != nil {
		return nil, err
	}

	if msgType == wire.MessageTypeCallMessageWithRollback {
		if err := d.store.PutRollback(ctx, sn, store.Rollback{
			From:    caller,
			To:      to.String(),
			Sources: sources,
			Data:    rollback,
			Enabled: false,
		}); err != nil {
			return nil, err
		}
	}

	mode := connection.ReplyModeNone
	switch msgType {
	case wire.MessageTypeCallMessageWithRollback:
		mode = connection.ReplyModeForSn(sn)
	case wire.MessageTypeCallMessagePersisted:
		mode = connection.ReplyModePersisted
	}
	needResponse := msgType == wire.MessageTypeCallMessageWithRollback

	for _, name := range sources {
		conn, ok := d.connectionByName(name)
		if !ok {
			return nil, xcallerr.ErrNoDefaultConnection
		}
		fee, err := conn.GetFee(ctx, to.NetID, needResponse)
		if err != nil {
			return nil, err
		}
		if err := d.routeProtocolFee(ctx, caller, fee, name); err != nil {
			return nil, err
		}
		if err := conn.SendMessage(ctx, to.NetID, mode, payload); err != nil {
			return nil, err
		}
	}

	if err := d.routeProtocolFee(ctx, caller, cfg.ProtocolFee, cfg.FeeHandler); err != nil {
		return nil, err
	}

	d.metrics.CallSent(to.NetID)
	d.emit(CallMessageSentEvent{From: req.From.String(), To: to.String(), Sn: sn})
	return sn, nil
}

// resolveSources returns the explicit Sources an Envelope named, or the
// single default connection configured for the destination network.
func (d *Dispatcher) resolveSources(ctx context.Context, explicit []string, nid string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	def, ok, err := d.store.GetDefaultConnection(ctx, nid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xcallerr.ErrNoDefaultConnection
	}
	return []string{def}, nil
}
