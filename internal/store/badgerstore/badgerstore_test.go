package badgerstore_test

import (
	"testing"

	"github.com/icon-project/xcall-core/internal/store"
	"github.com/icon-project/xcall-core/internal/store/badgerstore"
	"github.com/icon-project/xcall-core/internal/store/storetest"
)

func TestBadgerstoreConformance(t *testing.T) {
	storetest.Run(t, func() store.Store {
		dir := t.TempDir()
		db, err := badgerstore.Open(dir)
		if err != nil {
			t.Fatalf("open badger store: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return db
	})
}
