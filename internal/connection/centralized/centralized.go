// Package centralized implements the Centralized connection variant
// (spec §6.1): a single admin-designated relayer account is trusted to
// submit inbound messages, with per-destination-network message/response
// fees and a duplicate-receipt guard. Grounded on the teacher's
// internal/flashbots.Client — a thin struct holding one authorized
// account — but inverted and without its HTTP client: the teacher's
// Client submits bundles outbound to a relay, this Connection accepts
// submissions inbound from a relayer.
package centralized

import (
	"context"
	"math/big"
	"sync"

	"github.com/icon-project/xcall-core/internal/connection"
	"github.com/icon-project/xcall-core/internal/store"
	"github.com/icon-project/xcall-core/internal/xcallerr"
)

// Connection is a Centralized connection instance scoped to one pair of
// networks (this chain and wherever its counterpart relayer bridges to).
// It implements connection.Connection outbound and exposes RecvMessage /
// RevertMessage / ClaimFees as the surface a relayer or admin drives.
type Connection struct {
	mu sync.Mutex

	admin   string
	relayer string

	receipts store.ConnReceiptStore
	handler  connection.MessageHandler

	messageFee  map[string]*big.Int // keyed by destination nid
	responseFee map[string]*big.Int

	collected map[string]*big.Int // fees collected per nid, awaiting ClaimFees

	sent []OutboundRecord
}

// OutboundRecord is kept for relayers to poll what this connection has
// queued for delivery — the Centralized variant has no transport of its
// own, so SendMessage just appends here (spec §6.1: "a relayer process
// watches for outbound sends and a threshold-free admission policy for
// inbound ones").
type OutboundRecord struct {
	To     string
	Mode   connection.ReplyMode
	ConnSn *big.Int
	Msg    []byte
}

func New(admin, relayer string, receipts store.ConnReceiptStore, handler connection.MessageHandler) *Connection {
	return &Connection{
		admin:       admin,
		relayer:     relayer,
		receipts:    receipts,
		handler:     handler,
		messageFee:  make(map[string]*big.Int),
		responseFee: make(map[string]*big.Int),
		collected:   make(map[string]*big.Int),
	}
}

func (c *Connection) requireAdmin(caller string) error {
	if caller != c.admin {
		return xcallerr.ErrOnlyAdmin
	}
	return nil
}

func (c *Connection) requireRelayer(caller string) error {
	if caller != c.relayer {
		return xcallerr.ErrOnlyRelayer
	}
	return nil
}

// SetAdmin transfers the admin role.
func (c *Connection) SetAdmin(caller, newAdmin string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	c.admin = newAdmin
	return nil
}

// SetRelayer transfers the trusted relayer account.
func (c *Connection) SetRelayer(caller, newRelayer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	c.relayer = newRelayer
	return nil
}

// SetFees sets the flat message and response fees charged per send to nid.
func (c *Connection) SetFees(caller, nid string, messageFee, responseFee *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	c.messageFee[nid] = messageFee
	c.responseFee[nid] = responseFee
	return nil
}

// GetFee implements connection.Connection: message_fee(to) plus
// response_fee(to) when a response path is requested.
func (c *Connection) GetFee(_ context.Context, to string, needResponse bool) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fee := new(big.Int).Set(c.zero(c.messageFee[to]))
	if needResponse {
		fee.Add(fee, c.zero(c.responseFee[to]))
	}
	return fee, nil
}

func (c *Connection) zero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// SendMessage implements connection.Connection. Per spec §6.1: a
// ReplyModeResult (or ReplyModePersisted) send is fee-exempt and just
// queued; any other send charges message_fee plus, when mode carries a
// strictly positive sn, response_fee — collected into this connection's
// own per-network ledger for later ClaimFees by the admin.
func (c *Connection) SendMessage(ctx context.Context, to string, mode connection.ReplyMode, msg []byte) error {
	connSn, err := c.receipts.NextConnSn(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if mode != connection.ReplyModePersisted && mode != connection.ReplyModeResult {
		fee := new(big.Int).Set(c.zero(c.messageFee[to]))
		if mode.Int64() > 0 {
			fee.Add(fee, c.zero(c.responseFee[to]))
		}
		if fee.Sign() > 0 {
			total := c.collected[to]
			if total == nil {
				total = big.NewInt(0)
			}
			c.collected[to] = new(big.Int).Add(total, fee)
		}
	}

	c.sent = append(c.sent, OutboundRecord{To: to, Mode: mode, ConnSn: connSn, Msg: append([]byte(nil), msg...)})
	return nil
}

// Outbound returns every message queued for delivery since the last call
// — the relayer's poll loop drains this.
func (c *Connection) Outbound() []OutboundRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sent
	c.sent = nil
	return out
}

// RecvMessage is the relayer-only inbound entry point: it enforces the
// (srcNetwork, connSn) duplicate guard (invariant 4) before handing the
// payload to the dispatcher.
func (c *Connection) RecvMessage(ctx context.Context, caller, srcNetwork string, connSn *big.Int, payload []byte) error {
	if err := c.requireRelayer(caller); err != nil {
		return err
	}
	dup, err := c.receipts.SeenReceipt(ctx, srcNetwork, connSn)
	if err != nil {
		return err
	}
	if dup {
		return xcallerr.ErrDuplicateMessage
	}
	return c.handler.HandleMessage(ctx, srcNetwork, c.name(), payload)
}

// RevertMessage is the admin escape hatch for a sn this connection knows
// it can no longer honestly deliver a Result for (e.g. the relayer is
// offline past some externally-enforced timeout); it synthesizes a
// Failure Result through the same handler path RecvMessage uses.
func (c *Connection) RevertMessage(ctx context.Context, caller string, sn *big.Int) error {
	c.mu.Lock()
	admin := c.admin
	c.mu.Unlock()
	if caller != admin {
		return xcallerr.ErrOnlyAdmin
	}
	type errorHandler interface {
		HandleError(ctx context.Context, callerConnection string, sn *big.Int) error
	}
	eh, ok := c.handler.(errorHandler)
	if !ok {
		return xcallerr.ErrOnlyAdmin
	}
	return eh.HandleError(ctx, c.name(), sn)
}

// ClaimFees lets the admin withdraw fees this connection has collected
// for a given destination network; actual token transfer is left to the
// caller (spec Non-goals: fee-token transfer primitives), this just
// returns and zeroes the accrued amount.
func (c *Connection) ClaimFees(caller, nid string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return nil, err
	}
	amount := c.collected[nid]
	if amount == nil {
		amount = big.NewInt(0)
	}
	c.collected[nid] = big.NewInt(0)
	return amount, nil
}

// name identifies this connection instance to the dispatcher. Centralized
// connections are registered under a fixed name by the host binding; we
// use a constant here since a process runs exactly one Centralized
// connection per counterpart network.
func (c *Connection) name() string { return "centralized" }
