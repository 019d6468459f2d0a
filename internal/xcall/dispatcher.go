// Package xcall implements the dispatcher at the center of the protocol:
// send_call, handle_message, execute_call and execute_rollback, plus the
// admin surface and fee routing around them (spec §2-§6). It is grounded
// on the teacher's internal/bundlecore package for its shape — a single
// struct wiring together its collaborators, with one file per public
// operation — generalized from one-shot bundle submission to a
// long-lived message dispatcher.
package xcall

import (
	"context"
	"log/slog"
	"math/big"
	"sync"

	"github.com/icon-project/xcall-core/internal/connection"
	"github.com/icon-project/xcall-core/internal/dapp"
	"github.com/icon-project/xcall-core/internal/logging"
	"github.com/icon-project/xcall-core/internal/metrics"
	"github.com/icon-project/xcall-core/internal/store"
	"github.com/icon-project/xcall-core/internal/xcallerr"
)

// Dispatcher is the protocol core. It holds no network-facing state of
// its own: every inbound/outbound byte crosses through a registered
// connection.Connection, and every sub-invocation crosses through a
// registered dapp.CallMessageHandler.
type Dispatcher struct {
	mu sync.RWMutex

	store   store.Store
	fees    FeeLedger
	metrics *metrics.Dispatcher
	logger  *slog.Logger
	events  EventSink

	// selfAccount is the local identifier xCall uses to stamp its own
	// NetworkAddress when invoking execute_rollback's handler callback.
	selfAccount string

	connections map[string]connection.Connection
	dapps       map[string]dapp.CallMessageHandler
}

// Option configures optional Dispatcher collaborators at construction.
type Option func(*Dispatcher)

func WithFeeLedger(l FeeLedger) Option { return func(d *Dispatcher) { d.fees = l } }
func WithMetrics(m *metrics.Dispatcher) Option { return func(d *Dispatcher) { d.metrics = m } }
func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.logger = l } }
func WithEventSink(s EventSink) Option { return func(d *Dispatcher) { d.events = s } }
func WithSelfAccount(account string) Option { return func(d *Dispatcher) { d.selfAccount = account } }

// New builds a Dispatcher over the given persistence backend. Call
// Initialize before any other operation.
func New(st store.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       st,
		logger:      logging.New("info"),
		events:      noopSink{},
		selfAccount: "xcall",
		connections: make(map[string]connection.Connection),
		dapps:       make(map[string]dapp.CallMessageHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Initialize sets the dispatcher's network identity, admin and initial
// fee configuration. It may run exactly once per backing store.
func (d *Dispatcher) Initialize(ctx context.Context, networkID, admin string) error {
	cfg, err := d.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Initialized {
		return xcallerr.ErrAlreadyInitialized
	}
	cfg = store.Config{
		Initialized: true,
		NetworkID:   networkID,
		Admin:       admin,
		FeeHandler:  admin,
		ProtocolFee: big.NewInt(0),
	}
	return d.store.PutConfig(ctx, cfg)
}

func (d *Dispatcher) requireConfig(ctx context.Context) (store.Config, error) {
	cfg, err := d.store.GetConfig(ctx)
	if err != nil {
		return store.Config{}, err
	}
	if !cfg.Initialized {
		return store.Config{}, xcallerr.ErrUninitialized
	}
	return cfg, nil
}

func (d *Dispatcher) requireAdmin(cfg store.Config, caller string) error {
	if caller != cfg.Admin {
		return xcallerr.ErrOnlyAdmin
	}
	return nil
}

func (d *Dispatcher) requireFeeHandler(cfg store.Config, caller string) error {
	if caller != cfg.FeeHandler {
		return xcallerr.ErrOnlyFeeHandler
	}
	return nil
}

// SetAdmin transfers the admin role. caller must be the current admin.
func (d *Dispatcher) SetAdmin(ctx context.Context, caller, newAdmin string) error {
	cfg, err := d.requireConfig(ctx)
	if err != nil {
		return err
	}
	if err := d.requireAdmin(cfg, caller); err != nil {
		return err
	}
	cfg.Admin = newAdmin
	return d.store.PutConfig(ctx, cfg)
}

// SetProtocolFee updates the flat fee send_call routes to fee_handler.
// Unlike the other admin setters, this one is gated on fee_handler itself.
func (d *Dispatcher) SetProtocolFee(ctx context.Context, caller string, fee *big.Int) error {
	cfg, err := d.requireConfig(ctx)
	if err != nil {
		return err
	}
	if err := d.requireFeeHandler(cfg, caller); err != nil {
		return err
	}
	cfg.ProtocolFee = fee
	return d.store.PutConfig(ctx, cfg)
}

// SetFeeHandler updates the account protocol fees are credited to.
func (d *Dispatcher) SetFeeHandler(ctx context.Context, caller, handler string) error {
	cfg, err := d.requireConfig(ctx)
	if err != nil {
		return err
	}
	if err := d.requireAdmin(cfg, caller); err != nil {
		return err
	}
	cfg.FeeHandler = handler
	return d.store.PutConfig(ctx, cfg)
}

// SetDefaultConnection registers the connection send_call falls back to
// for a destination network when an Envelope names no explicit Sources.
func (d *Dispatcher) SetDefaultConnection(ctx context.Context, caller, nid, address string) error {
	cfg, err := d.requireConfig(ctx)
	if err != nil {
		return err
	}
	if err := d.requireAdmin(cfg, caller); err != nil {
		return err
	}
	return d.store.SetDefaultConnection(ctx, nid, address)
}

// GetDefaultConnection reports the connection registered for nid via
// SetDefaultConnection, if any. It is a read operation: callers use it
// to discover which connection a send_call with no explicit Sources
// would resolve to.
func (d *Dispatcher) GetDefaultConnection(ctx context.Context, nid string) (string, bool, error) {
	return d.store.GetDefaultConnection(ctx, nid)
}

// RegisterConnection wires a transport under the name send_call's
// Envelope.Sources/Destinations and handle_message's callerConnection
// refer to it by.
func (d *Dispatcher) RegisterConnection(name string, conn connection.Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connections[name] = conn
}

func (d *Dispatcher) connectionByName(name string) (connection.Connection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.connections[name]
	return c, ok
}

// RegisterDApp wires the destination handler contract for a local
// account: execute_call and execute_rollback invoke it by ProxyRequest.To
// / Rollback.From.
func (d *Dispatcher) RegisterDApp(account string, handler dapp.CallMessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dapps[account] = handler
}

func (d *Dispatcher) dappByAccount(account string) (dapp.CallMessageHandler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.dapps[account]
	return h, ok
}

func (d *Dispatcher) emit(event any) {
	if d.events != nil {
		d.events.Emit(event)
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func without(xs []string, x string) []string {
	out := make([]string, 0, len(xs))
	for _, v := range xs {
		if v != x {
			out = append(out, v)
		}
	}
	return out
}
