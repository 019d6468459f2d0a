// Package memstore is an in-process Store implementation guarded by a
// single mutex, used by default and by every unit test. It never returns
// an error — there is no I/O to fail.
package memstore

import (
	"context"
	"math/big"
	"sync"

	"github.com/icon-project/xcall-core/internal/store"
)

type Memstore struct {
	mu sync.Mutex

	cfg store.Config

	sn       *big.Int
	lastReq  *big.Int

	defaultConn map[string]string
	rollbacks   map[string]store.Rollback
	proxies     map[string]store.ProxyRequest
	pendingReq  map[[32]byte][]string
	pendingResp map[[32]byte][]string
}

func New() *Memstore {
	return &Memstore{
		sn:          big.NewInt(0),
		lastReq:     big.NewInt(0),
		defaultConn: make(map[string]string),
		rollbacks:   make(map[string]store.Rollback),
		proxies:     make(map[string]store.ProxyRequest),
		pendingReq:  make(map[[32]byte][]string),
		pendingResp: make(map[[32]byte][]string),
	}
}

func (m *Memstore) GetConfig(context.Context) (store.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, nil
}

func (m *Memstore) PutConfig(_ context.Context, cfg store.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	return nil
}

func (m *Memstore) NextSn(context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sn = new(big.Int).Add(m.sn, big.NewInt(1))
	return new(big.Int).Set(m.sn), nil
}

func (m *Memstore) NextReqID(context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = new(big.Int).Add(m.lastReq, big.NewInt(1))
	return new(big.Int).Set(m.lastReq), nil
}

func (m *Memstore) GetDefaultConnection(_ context.Context, nid string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.defaultConn[nid]
	return v, ok, nil
}

func (m *Memstore) SetDefaultConnection(_ context.Context, nid, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConn[nid] = address
	return nil
}

func (m *Memstore) PutRollback(_ context.Context, sn *big.Int, rb store.Rollback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks[sn.String()] = rb
	return nil
}

func (m *Memstore) GetRollback(_ context.Context, sn *big.Int) (store.Rollback, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rb, ok := m.rollbacks[sn.String()]
	return rb, ok, nil
}

func (m *Memstore) DeleteRollback(_ context.Context, sn *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rollbacks, sn.String())
	return nil
}

func (m *Memstore) PutProxyRequest(_ context.Context, reqID *big.Int, pr store.ProxyRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proxies[reqID.String()] = pr
	return nil
}

func (m *Memstore) GetProxyRequest(_ context.Context, reqID *big.Int) (store.ProxyRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr, ok := m.proxies[reqID.String()]
	return pr, ok, nil
}

func (m *Memstore) DeleteProxyRequest(_ context.Context, reqID *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.proxies, reqID.String())
	return nil
}

func (m *Memstore) GetPendingRequest(_ context.Context, key [32]byte) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.pendingReq[key]
	return append([]string(nil), v...), ok, nil
}

func (m *Memstore) PutPendingRequest(_ context.Context, key [32]byte, remaining []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingReq[key] = append([]string(nil), remaining...)
	return nil
}

func (m *Memstore) DeletePendingRequest(_ context.Context, key [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pendingReq, key)
	return nil
}

func (m *Memstore) GetPendingResponse(_ context.Context, key [32]byte) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.pendingResp[key]
	return append([]string(nil), v...), ok, nil
}

func (m *Memstore) PutPendingResponse(_ context.Context, key [32]byte, remaining []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingResp[key] = append([]string(nil), remaining...)
	return nil
}

func (m *Memstore) DeletePendingResponse(_ context.Context, key [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pendingResp, key)
	return nil
}

// ReceiptStore is a ConnReceiptStore implementation for a single
// connection instance, sharing the same in-memory convention.
type ReceiptStore struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	connSn  *big.Int
}

func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{seen: make(map[string]struct{}), connSn: big.NewInt(0)}
}

func (r *ReceiptStore) SeenReceipt(_ context.Context, srcNetwork string, connSn *big.Int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := srcNetwork + "/" + connSn.String()
	if _, ok := r.seen[key]; ok {
		return true, nil
	}
	r.seen[key] = struct{}{}
	return false, nil
}

func (r *ReceiptStore) NextConnSn(context.Context) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connSn = new(big.Int).Add(r.connSn, big.NewInt(1))
	return new(big.Int).Set(r.connSn), nil
}
