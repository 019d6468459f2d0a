// Package storetest runs a shared conformance suite against any
// store.Store implementation, the way marmos91-dittofs/pkg/metadata/
// storetest exercises every metadata backend with one suite.
package storetest

import (
	"context"
	"math/big"
	"testing"

	"github.com/icon-project/xcall-core/internal/store"
	"github.com/stretchr/testify/require"
)

// Run exercises the full store.Store surface against fresh.
func Run(t *testing.T, fresh func() store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("config round trip", func(t *testing.T) {
		s := fresh()
		cfg := store.Config{Initialized: true, NetworkID: "nid1", Admin: "admin1", FeeHandler: "admin1", ProtocolFee: big.NewInt(5)}
		require.NoError(t, s.PutConfig(ctx, cfg))
		got, err := s.GetConfig(ctx)
		require.NoError(t, err)
		require.Equal(t, cfg.NetworkID, got.NetworkID)
		require.Equal(t, 0, cfg.ProtocolFee.Cmp(got.ProtocolFee))
	})

	t.Run("sn is strictly monotonic", func(t *testing.T) {
		s := fresh()
		var last *big.Int
		for i := 0; i < 5; i++ {
			sn, err := s.NextSn(ctx)
			require.NoError(t, err)
			if last != nil {
				require.Equal(t, 1, sn.Cmp(last))
			}
			last = sn
		}
	})

	t.Run("req id is strictly monotonic and independent of sn", func(t *testing.T) {
		s := fresh()
		_, err := s.NextSn(ctx)
		require.NoError(t, err)
		r1, err := s.NextReqID(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, big.NewInt(1).Cmp(r1), "drawing an sn must not advance the req id counter")
		r2, err := s.NextReqID(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, r2.Cmp(r1))
	})

	t.Run("default connection", func(t *testing.T) {
		s := fresh()
		_, ok, err := s.GetDefaultConnection(ctx, "nid2")
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, s.SetDefaultConnection(ctx, "nid2", "connAddr"))
		v, ok, err := s.GetDefaultConnection(ctx, "nid2")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "connAddr", v)
	})

	t.Run("rollback lifecycle", func(t *testing.T) {
		s := fresh()
		sn := big.NewInt(7)
		rb := store.Rollback{From: "caller", To: "nid2/addrB", Sources: []string{"c1"}, Data: []byte{1, 2, 3}}
		require.NoError(t, s.PutRollback(ctx, sn, rb))
		got, ok, err := s.GetRollback(ctx, sn)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, rb.Data, got.Data)
		require.False(t, got.Enabled)

		got.Enabled = true
		require.NoError(t, s.PutRollback(ctx, sn, got))
		got2, _, err := s.GetRollback(ctx, sn)
		require.NoError(t, err)
		require.True(t, got2.Enabled)

		require.NoError(t, s.DeleteRollback(ctx, sn))
		_, ok, err = s.GetRollback(ctx, sn)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("proxy request lifecycle", func(t *testing.T) {
		s := fresh()
		reqID := big.NewInt(3)
		pr := store.ProxyRequest{From: "nid1/caller", To: "addrB", Sn: big.NewInt(1), Data: []byte("x"), Owner: "connA"}
		require.NoError(t, s.PutProxyRequest(ctx, reqID, pr))
		got, ok, err := s.GetProxyRequest(ctx, reqID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, pr.Owner, got.Owner)
		require.NoError(t, s.DeleteProxyRequest(ctx, reqID))
		_, ok, err = s.GetProxyRequest(ctx, reqID)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("pending request and response sets", func(t *testing.T) {
		s := fresh()
		var key [32]byte
		key[0] = 0xAB
		_, ok, err := s.GetPendingRequest(ctx, key)
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, s.PutPendingRequest(ctx, key, []string{"c1", "c2"}))
		v, ok, err := s.GetPendingRequest(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.ElementsMatch(t, []string{"c1", "c2"}, v)
		require.NoError(t, s.DeletePendingRequest(ctx, key))
		_, ok, _ = s.GetPendingRequest(ctx, key)
		require.False(t, ok)

		require.NoError(t, s.PutPendingResponse(ctx, key, []string{"c1"}))
		v2, ok, err := s.GetPendingResponse(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []string{"c1"}, v2)
		require.NoError(t, s.DeletePendingResponse(ctx, key))
	})
}
