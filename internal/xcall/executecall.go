package xcall

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/icon-project/xcall-core/internal/connection"
	"github.com/icon-project/xcall-core/internal/wire"
	"github.com/icon-project/xcall-core/internal/xcallerr"
)

// ExecuteCall is the relayer-triggered step that resupplies a committed
// request's data (if it was hash-substituted), invokes the destination
// dApp, and — for WithRollback requests — dispatches the Result back
// through every protocol the request named (spec §4.3).
func (d *Dispatcher) ExecuteCall(ctx context.Context, reqID *big.Int, data []byte) error {
	pr, found, err := d.store.GetProxyRequest(ctx, reqID)
	if err != nil {
		return err
	}
	if !found {
		return xcallerr.ErrInvalidRequestId
	}

	if pr.DataIsHash {
		digest := crypto.Keccak256(data)
		if !bytes.Equal(digest, pr.Data) {
			return xcallerr.ErrDataMismatch
		}
	} else if !bytes.Equal(data, pr.Data) {
		return xcallerr.ErrDataMismatch
	}

	from, err := wire.ParseNetworkAddress(pr.From)
	if err != nil {
		return err
	}

	handler, ok := d.dappByAccount(pr.To)
	if !ok {
		return xcallerr.ErrInvalidPayload
	}
	callErr := handler.HandleCallMessage(ctx, from, data, pr.Protocols)

	msgType := wire.MessageType(pr.ReqType).Base()
	switch msgType {
	case wire.MessageTypeCallMessagePersisted:
		if callErr != nil {
			// Delivery transaction aborts; the ProxyRequest stays so a
			// retry can be attempted against the same committed copy.
			return callErr
		}
		return d.store.DeleteProxyRequest(ctx, reqID)

	case wire.MessageTypeCallMessageWithRollback:
		if err := d.store.DeleteProxyRequest(ctx, reqID); err != nil {
			return err
		}
		code := wire.ResultSuccess
		if callErr != nil {
			code = wire.ResultFailure
		}
		return d.sendResult(ctx, from.NetID, pr.Sn, code, pr.Protocols)

	default: // plain CallMessage: success/failure is silently terminal.
		return d.store.DeleteProxyRequest(ctx, reqID)
	}
}

// sendResult dispatches a CSMessageResult back to the source network
// through every connection the original request named, fee-exempt.
func (d *Dispatcher) sendResult(ctx context.Context, toNid string, sn *big.Int, code wire.ResultCode, protocols []string) error {
	result := wire.CSMessageResult{Sn: sn, Code: uint8(code)}
	csMsg, err := wire.NewCSMessageFromResult(result)
	if err != nil {
		return err
	}
	payload, err := wire.EncodeCSMessage(csMsg)
	if err != nil {
		return err
	}

	targets := protocols
	if len(targets) == 0 {
		resolved, err := d.resolveSources(ctx, nil, toNid)
		if err != nil {
			return err
		}
		targets = resolved
	}
	for _, name := range targets {
		conn, ok := d.connectionByName(name)
		if !ok {
			return xcallerr.ErrNoDefaultConnection
		}
		if err := conn.SendMessage(ctx, toNid, connection.ReplyModeResult, payload); err != nil {
			return err
		}
	}
	return nil
}
