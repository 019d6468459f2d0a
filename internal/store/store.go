// Package store defines the dispatcher's persistence boundary. The
// protocol spec explicitly treats "host-specific persistence primitives"
// as an external collaborator (§1 Non-goals); this interface is the
// seam a concrete chain binding would satisfy with its own storage API.
// Two implementations live alongside it for this repository's own use:
// memstore (in-process, mutex-guarded maps) and badgerstore (embedded
// BadgerDB, grounded on marmos91-dittofs/pkg/metadata/badger).
package store

import (
	"context"
	"math/big"
)

// Config is the dispatcher's singleton configuration row.
type Config struct {
	Initialized bool
	NetworkID   string
	Admin       string
	FeeHandler  string
	ProtocolFee *big.Int
}

// Rollback is the record persisted on the source chain when a
// WithRollback request is sent (spec §3).
type Rollback struct {
	From    string   // local address of the original caller
	To      string   // NetworkAddress string of the destination
	Sources []string // connections the original send_call used
	Data    []byte   // rollback payload
	Enabled bool
}

// ProxyRequest is the record persisted on the destination chain once an
// inbound CSMessageRequest is committed (spec §3).
type ProxyRequest struct {
	From      string // NetworkAddress string
	To        string // local account on this chain
	Sn        *big.Int
	ReqType   uint8
	Data      []byte
	DataIsHash bool
	Protocols []string
	Owner     string // connection address that delivered the committing copy
}

// Store is the full persistence surface the dispatcher and its
// connections need. Every method that can fail returns an error; a
// memory-backed Store never does, a BadgerDB-backed one can.
type Store interface {
	// Singleton config.
	GetConfig(ctx context.Context) (Config, error)
	PutConfig(ctx context.Context, cfg Config) error

	// Monotonic counters. NextSn/NextReqID atomically increment and
	// return the new value — never reused, per invariant 1.
	NextSn(ctx context.Context) (*big.Int, error)
	NextReqID(ctx context.Context) (*big.Int, error)

	// Per-network default connection, keyed by destination NetID.
	GetDefaultConnection(ctx context.Context, nid string) (string, bool, error)
	SetDefaultConnection(ctx context.Context, nid, address string) error

	// Rollback table, keyed by sn.
	PutRollback(ctx context.Context, sn *big.Int, rb Rollback) error
	GetRollback(ctx context.Context, sn *big.Int) (Rollback, bool, error)
	DeleteRollback(ctx context.Context, sn *big.Int) error

	// Proxy-request table, keyed by req_id.
	PutProxyRequest(ctx context.Context, reqID *big.Int, pr ProxyRequest) error
	GetProxyRequest(ctx context.Context, reqID *big.Int) (ProxyRequest, bool, error)
	DeleteProxyRequest(ctx context.Context, reqID *big.Int) error

	// Pending-request table: key = keccak256(request-without-protocols),
	// value = set of protocols that have not yet delivered a copy.
	GetPendingRequest(ctx context.Context, key [32]byte) ([]string, bool, error)
	PutPendingRequest(ctx context.Context, key [32]byte, remaining []string) error
	DeletePendingRequest(ctx context.Context, key [32]byte) error

	// Pending-response table: key = keccak256(result), value = set of
	// connections that have not yet confirmed this result.
	GetPendingResponse(ctx context.Context, key [32]byte) ([]string, bool, error)
	PutPendingResponse(ctx context.Context, key [32]byte, remaining []string) error
	DeletePendingResponse(ctx context.Context, key [32]byte) error
}

// ConnReceiptStore is the duplicate-receipt guard a connection keeps over
// (src_network, conn_sn) pairs (spec invariant 4). Split from Store
// because a connection instance owns its own receipt namespace distinct
// from the dispatcher's tables.
type ConnReceiptStore interface {
	// SeenReceipt records (srcNetwork, connSn) and reports whether it was
	// already present (i.e. this call is a duplicate).
	SeenReceipt(ctx context.Context, srcNetwork string, connSn *big.Int) (alreadySeen bool, err error)

	// NextConnSn atomically increments and returns this connection's
	// own outbound sequence counter.
	NextConnSn(ctx context.Context) (*big.Int, error)
}
