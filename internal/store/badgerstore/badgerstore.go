// Package badgerstore persists the dispatcher's tables in an embedded
// BadgerDB, grounded on marmos91-dittofs/pkg/metadata/badger: one key
// namespace per table, badger.Txn for atomicity, a mutex serializing the
// counter increments the way dittofs serializes share creation.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/icon-project/xcall-core/internal/store"
)

const (
	prefixConfig      = "cfg:"
	prefixDefaultConn = "defconn:"
	prefixRollback    = "rb:"
	prefixProxy       = "proxy:"
	prefixPendingReq  = "pendreq:"
	prefixPendingResp = "pendresp:"

	keyConfigSingleton = "cfg:singleton"
	keySnCounter       = "cfg:sn"
	keyReqIDCounter    = "cfg:reqid"
)

// Badgerstore implements store.Store over a BadgerDB handle.
type Badgerstore struct {
	db *badger.DB
	mu sync.Mutex // serializes counter read-modify-write
}

// Open opens (creating if absent) a BadgerDB at path.
func Open(path string) (*Badgerstore, error) {
	db, err := badger.Open(badger.DefaultOptions(path))
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", path, err)
	}
	return &Badgerstore{db: db}, nil
}

func (b *Badgerstore) Close() error { return b.db.Close() }

func (b *Badgerstore) GetConfig(context.Context) (store.Config, error) {
	var cfg store.Config
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyConfigSingleton))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &cfg) })
	})
	if err != nil {
		return store.Config{}, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

func (b *Badgerstore) PutConfig(_ context.Context, cfg store.Config) error {
	v, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyConfigSingleton), v)
	})
}

func (b *Badgerstore) nextCounter(key string) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var next big.Int
	err := b.db.Update(func(txn *badger.Txn) error {
		cur := big.NewInt(0)
		item, err := txn.Get([]byte(key))
		if err == nil {
			if err := item.Value(func(v []byte) error {
				_, ok := cur.SetString(string(v), 10)
				if !ok {
					return fmt.Errorf("corrupt counter at %s", key)
				}
				return nil
			}); err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		next.Add(cur, big.NewInt(1))
		return txn.Set([]byte(key), []byte(next.String()))
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (b *Badgerstore) NextSn(context.Context) (*big.Int, error) {
	v, err := b.nextCounter(keySnCounter)
	if err != nil {
		return nil, fmt.Errorf("next sn: %w", err)
	}
	return v, nil
}

func (b *Badgerstore) NextReqID(context.Context) (*big.Int, error) {
	v, err := b.nextCounter(keyReqIDCounter)
	if err != nil {
		return nil, fmt.Errorf("next req id: %w", err)
	}
	return v, nil
}

func (b *Badgerstore) GetDefaultConnection(_ context.Context, nid string) (string, bool, error) {
	var addr string
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixDefaultConn + nid))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error { addr = string(v); return nil })
	})
	if err != nil {
		return "", false, fmt.Errorf("get default connection: %w", err)
	}
	return addr, found, nil
}

func (b *Badgerstore) SetDefaultConnection(_ context.Context, nid, address string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixDefaultConn+nid), []byte(address))
	})
}

func (b *Badgerstore) PutRollback(_ context.Context, sn *big.Int, rb store.Rollback) error {
	v, err := json.Marshal(rb)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixRollback+sn.String()), v)
	})
}

func (b *Badgerstore) GetRollback(_ context.Context, sn *big.Int) (store.Rollback, bool, error) {
	var rb store.Rollback
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixRollback + sn.String()))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &rb) })
	})
	if err != nil {
		return store.Rollback{}, false, fmt.Errorf("get rollback: %w", err)
	}
	return rb, found, nil
}

func (b *Badgerstore) DeleteRollback(_ context.Context, sn *big.Int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixRollback + sn.String()))
	})
}

func (b *Badgerstore) PutProxyRequest(_ context.Context, reqID *big.Int, pr store.ProxyRequest) error {
	v, err := json.Marshal(pr)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixProxy+reqID.String()), v)
	})
}

func (b *Badgerstore) GetProxyRequest(_ context.Context, reqID *big.Int) (store.ProxyRequest, bool, error) {
	var pr store.ProxyRequest
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixProxy + reqID.String()))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &pr) })
	})
	if err != nil {
		return store.ProxyRequest{}, false, fmt.Errorf("get proxy request: %w", err)
	}
	return pr, found, nil
}

func (b *Badgerstore) DeleteProxyRequest(_ context.Context, reqID *big.Int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixProxy + reqID.String()))
	})
}

func (b *Badgerstore) getStringSet(prefix string, key [32]byte) ([]string, bool, error) {
	var out []string
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefix + string(key[:])))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &out) })
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}

func (b *Badgerstore) putStringSet(prefix string, key [32]byte, values []string) error {
	v, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefix+string(key[:])), v)
	})
}

func (b *Badgerstore) deleteKey(prefix string, key [32]byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefix + string(key[:])))
	})
}

func (b *Badgerstore) GetPendingRequest(_ context.Context, key [32]byte) ([]string, bool, error) {
	v, ok, err := b.getStringSet(prefixPendingReq, key)
	if err != nil {
		return nil, false, fmt.Errorf("get pending request: %w", err)
	}
	return v, ok, nil
}

func (b *Badgerstore) PutPendingRequest(_ context.Context, key [32]byte, remaining []string) error {
	if err := b.putStringSet(prefixPendingReq, key, remaining); err != nil {
		return fmt.Errorf("put pending request: %w", err)
	}
	return nil
}

func (b *Badgerstore) DeletePendingRequest(_ context.Context, key [32]byte) error {
	if err := b.deleteKey(prefixPendingReq, key); err != nil {
		return fmt.Errorf("delete pending request: %w", err)
	}
	return nil
}

func (b *Badgerstore) GetPendingResponse(_ context.Context, key [32]byte) ([]string, bool, error) {
	v, ok, err := b.getStringSet(prefixPendingResp, key)
	if err != nil {
		return nil, false, fmt.Errorf("get pending response: %w", err)
	}
	return v, ok, nil
}

func (b *Badgerstore) PutPendingResponse(_ context.Context, key [32]byte, remaining []string) error {
	if err := b.putStringSet(prefixPendingResp, key, remaining); err != nil {
		return fmt.Errorf("put pending response: %w", err)
	}
	return nil
}

func (b *Badgerstore) DeletePendingResponse(_ context.Context, key [32]byte) error {
	if err := b.deleteKey(prefixPendingResp, key); err != nil {
		return fmt.Errorf("delete pending response: %w", err)
	}
	return nil
}

// ReceiptStore implements store.ConnReceiptStore over the same BadgerDB,
// namespaced by the connection's own key prefix so two connections can
// share one database file without colliding.
type ReceiptStore struct {
	db     *badger.DB
	prefix string
	mu     sync.Mutex
}

func NewReceiptStore(db *Badgerstore, connectionName string) *ReceiptStore {
	return &ReceiptStore{db: db.db, prefix: "recv:" + connectionName + ":"}
}

func (r *ReceiptStore) SeenReceipt(_ context.Context, srcNetwork string, connSn *big.Int) (bool, error) {
	key := []byte(r.prefix + srcNetwork + ":" + connSn.String())
	alreadySeen := false
	err := r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			alreadySeen = true
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, []byte{1})
	})
	if err != nil {
		return false, fmt.Errorf("seen receipt: %w", err)
	}
	return alreadySeen, nil
}

func (r *ReceiptStore) NextConnSn(context.Context) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := []byte(r.prefix + "connsn")
	var next big.Int
	err := r.db.Update(func(txn *badger.Txn) error {
		cur := big.NewInt(0)
		item, err := txn.Get(key)
		if err == nil {
			if err := item.Value(func(v []byte) error {
				_, ok := cur.SetString(string(v), 10)
				if !ok {
					return fmt.Errorf("corrupt conn_sn counter")
				}
				return nil
			}); err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		next.Add(cur, big.NewInt(1))
		return txn.Set(key, []byte(next.String()))
	})
	if err != nil {
		return nil, fmt.Errorf("next conn sn: %w", err)
	}
	return &next, nil
}
