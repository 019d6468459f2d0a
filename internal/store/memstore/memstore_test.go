package memstore_test

import (
	"testing"

	"github.com/icon-project/xcall-core/internal/store"
	"github.com/icon-project/xcall-core/internal/store/memstore"
	"github.com/icon-project/xcall-core/internal/store/storetest"
)

func TestMemstoreConformance(t *testing.T) {
	storetest.Run(t, func() store.Store { return memstore.New() })
}
