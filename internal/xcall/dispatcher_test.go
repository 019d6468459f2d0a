package xcall_test

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/icon-project/xcall-core/internal/connection"
	"github.com/icon-project/xcall-core/internal/dapp/mockdapp"
	"github.com/icon-project/xcall-core/internal/store"
	"github.com/icon-project/xcall-core/internal/store/memstore"
	"github.com/icon-project/xcall-core/internal/wire"
	"github.com/icon-project/xcall-core/internal/xcall"
	"github.com/icon-project/xcall-core/internal/xcallerr"
)

// fakeConnection is an in-process Connection double: it hands whatever
// it's asked to send to a paired Dispatcher's HandleMessage, letting the
// test drive a two-sided exchange without any real transport.
type fakeConnection struct {
	mu   sync.Mutex
	name string
	peer *xcall.Dispatcher
	sent []sentMessage
	fee  *big.Int
}

type sentMessage struct {
	to   string
	mode connection.ReplyMode
	msg  []byte
}

func newFakeConnection(name string) *fakeConnection {
	return &fakeConnection{name: name, fee: big.NewInt(0)}
}

func (c *fakeConnection) SendMessage(ctx context.Context, to string, mode connection.ReplyMode, msg []byte) error {
	c.mu.Lock()
	c.sent = append(c.sent, sentMessage{to: to, mode: mode, msg: msg})
	peer := c.peer
	c.mu.Unlock()
	if peer == nil {
		return nil
	}
	return peer.HandleMessage(ctx, peerFromNid, c.name, msg)
}

func (c *fakeConnection) GetFee(context.Context, string, bool) (*big.Int, error) {
	return c.fee, nil
}

// peerFromNid is the fixed network id every fakeConnection in these
// tests claims messages arrive from — tests only ever wire a single
// source chain talking to a single destination chain.
const peerFromNid = "0x1.icon"
const selfNid = "0x2.eth"

func newDispatcher(t *testing.T, nid, admin string) (*xcall.Dispatcher, store.Store) {
	t.Helper()
	st := memstore.New()
	d := xcall.New(st)
	require.NoError(t, d.Initialize(context.Background(), nid, admin))
	return d, st
}

func TestSendCallPlainMessageAssignsMonotonicSn(t *testing.T) {
	ctx := context.Background()
	src, _ := newDispatcher(t, peerFromNid, "admin")
	dst, _ := newDispatcher(t, selfNid, "admin")

	conn := newFakeConnection("conn-a")
	conn.peer = dst
	src.RegisterConnection("conn-a", conn)
	require.NoError(t, dst.SetDefaultConnection(ctx, "admin", peerFromNid, "conn-a"))
	dst.RegisterDApp("receiver", mockdapp.New())

	msg, err := wire.EncodeCallMessage(wire.CallMessage{Data: []byte("hello")})
	require.NoError(t, err)
	env := wire.Envelope{MessageType: uint8(wire.MessageTypeCallMessage), Message: msg, Sources: []string{"conn-a"}}

	sn1, err := src.SendCall(ctx, "caller", false, env, wire.NewNetworkAddress(selfNid, "receiver"))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), sn1)

	sn2, err := src.SendCall(ctx, "caller", false, env, wire.NewNetworkAddress(selfNid, "receiver"))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2), sn2)
}

func TestWithRollbackLifecycleSuccess(t *testing.T) {
	ctx := context.Background()
	src, srcStore := newDispatcher(t, peerFromNid, "admin")
	dst, _ := newDispatcher(t, selfNid, "admin")

	conn := newFakeConnection("conn-a")
	conn.peer = dst
	src.RegisterConnection("conn-a", conn)

	replyConn := newFakeConnection("conn-a-reverse")
	replyConn.peer = src
	dst.RegisterConnection("conn-a", replyConn)
	require.NoError(t, dst.SetDefaultConnection(ctx, "admin", peerFromNid, "conn-a"))
	dst.RegisterDApp("receiver", mockdapp.New())

	msg, err := wire.EncodeCallMessageWithRollback(wire.CallMessageWithRollback{Data: []byte("hi"), Rollback: []byte("rb")})
	require.NoError(t, err)
	env := wire.Envelope{MessageType: uint8(wire.MessageTypeCallMessageWithRollback), Message: msg, Sources: []string{"conn-a"}}

	sn, err := src.SendCall(ctx, "caller", true, env, wire.NewNetworkAddress(selfNid, "receiver"))
	require.NoError(t, err)

	rb, found, err := srcStore.GetRollback(ctx, sn)
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, rb.Enabled)

	// The destination committed exactly one ProxyRequest; drive execute_call.
	require.NoError(t, dst.ExecuteCall(ctx, big.NewInt(1), []byte("hi")))

	// Success Result flows back to the source and clears the rollback.
	_, found, err = srcStore.GetRollback(ctx, sn)
	require.NoError(t, err)
	require.False(t, found)
}

func TestWithRollbackLifecycleFailureEnablesRollback(t *testing.T) {
	ctx := context.Background()
	src, srcStore := newDispatcher(t, peerFromNid, "admin")
	dst, _ := newDispatcher(t, selfNid, "admin")

	conn := newFakeConnection("conn-a")
	conn.peer = dst
	src.RegisterConnection("conn-a", conn)

	replyConn := newFakeConnection("conn-a-reverse")
	replyConn.peer = src
	dst.RegisterConnection("conn-a", replyConn)
	require.NoError(t, dst.SetDefaultConnection(ctx, "admin", peerFromNid, "conn-a"))
	dst.RegisterDApp("receiver", mockdapp.New())

	msg, err := wire.EncodeCallMessageWithRollback(wire.CallMessageWithRollback{Data: []byte("rollback"), Rollback: []byte("undo")})
	require.NoError(t, err)
	env := wire.Envelope{MessageType: uint8(wire.MessageTypeCallMessageWithRollback), Message: msg, Sources: []string{"conn-a"}}

	sn, err := src.SendCall(ctx, "caller", true, env, wire.NewNetworkAddress(selfNid, "receiver"))
	require.NoError(t, err)

	require.NoError(t, dst.ExecuteCall(ctx, big.NewInt(1), []byte("rollback")))

	rb, found, err := srcStore.GetRollback(ctx, sn)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, rb.Enabled)

	src.RegisterDApp("caller", mockdapp.New())
	require.NoError(t, src.ExecuteRollback(ctx, "caller", sn))

	_, found, err = srcStore.GetRollback(ctx, sn)
	require.NoError(t, err)
	require.False(t, found)

	err = src.ExecuteRollback(ctx, "caller", sn)
	require.Error(t, err)
}

func TestHandleMessageRejectsMismatchedSourceNetwork(t *testing.T) {
	ctx := context.Background()
	dst, _ := newDispatcher(t, selfNid, "admin")
	dst.RegisterDApp("receiver", mockdapp.New())

	req := wire.CSMessageRequest{
		From: wire.NewNetworkAddress("0x3.other", "caller"),
		To:   "receiver",
		Sn:   big.NewInt(1),
		Type: uint8(wire.MessageTypeCallMessage),
		Data: []byte("x"),
	}
	csMsg, err := wire.NewCSMessageFromRequest(req)
	require.NoError(t, err)
	payload, err := wire.EncodeCSMessage(csMsg)
	require.NoError(t, err)

	err = dst.HandleMessage(ctx, peerFromNid, "conn-a", payload)
	require.Error(t, err)
}

func TestMultiProtocolRequestCommitsOnlyAfterAllDeliver(t *testing.T) {
	ctx := context.Background()
	dst, dstStore := newDispatcher(t, selfNid, "admin")
	dst.RegisterDApp("receiver", mockdapp.New())

	req := wire.CSMessageRequest{
		From:      wire.NewNetworkAddress(peerFromNid, "caller"),
		To:        "receiver",
		Sn:        big.NewInt(7),
		Type:      uint8(wire.MessageTypeCallMessage),
		Data:      []byte("multi"),
		Protocols: []string{"conn-a", "conn-b"},
	}
	csMsg, err := wire.NewCSMessageFromRequest(req)
	require.NoError(t, err)
	payload, err := wire.EncodeCSMessage(csMsg)
	require.NoError(t, err)

	require.NoError(t, dst.HandleMessage(ctx, peerFromNid, "conn-a", payload))
	_, found, err := dstStore.GetProxyRequest(ctx, big.NewInt(1))
	require.NoError(t, err)
	require.False(t, found, "must not commit until every named protocol has delivered")

	require.NoError(t, dst.HandleMessage(ctx, peerFromNid, "conn-b", payload))
	_, found, err = dstStore.GetProxyRequest(ctx, big.NewInt(1))
	require.NoError(t, err)
	require.True(t, found)
}

func TestHandleMessageRejectsUnauthorizedConnection(t *testing.T) {
	ctx := context.Background()
	dst, _ := newDispatcher(t, selfNid, "admin")
	dst.RegisterDApp("receiver", mockdapp.New())

	req := wire.CSMessageRequest{
		From:      wire.NewNetworkAddress(peerFromNid, "caller"),
		To:        "receiver",
		Sn:        big.NewInt(1),
		Type:      uint8(wire.MessageTypeCallMessage),
		Data:      []byte("x"),
		Protocols: []string{"conn-a", "conn-b"},
	}
	csMsg, err := wire.NewCSMessageFromRequest(req)
	require.NoError(t, err)
	payload, err := wire.EncodeCSMessage(csMsg)
	require.NoError(t, err)

	err = dst.HandleMessage(ctx, peerFromNid, "conn-rogue", payload)
	require.Error(t, err)
}

func TestSendCallRejectsRollbackFromNonContractCaller(t *testing.T) {
	ctx := context.Background()
	src, _ := newDispatcher(t, peerFromNid, "admin")

	msg, err := wire.EncodeCallMessageWithRollback(wire.CallMessageWithRollback{Data: []byte("hi"), Rollback: []byte("rb")})
	require.NoError(t, err)
	env := wire.Envelope{MessageType: uint8(wire.MessageTypeCallMessageWithRollback), Message: msg, Sources: []string{"conn-a"}}

	_, err = src.SendCall(ctx, "caller", false, env, wire.NewNetworkAddress(selfNid, "receiver"))
	require.Error(t, err)
}

func TestSetProtocolFeeIsGatedOnFeeHandlerNotAdmin(t *testing.T) {
	ctx := context.Background()
	d, st := newDispatcher(t, selfNid, "admin")

	// Initialize makes the admin the first fee_handler, so the admin may
	// set the fee until the fee_handler role is handed to another account.
	require.NoError(t, d.SetProtocolFee(ctx, "admin", big.NewInt(5)))
	cfg, err := st.GetConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, big.NewInt(5).Cmp(cfg.ProtocolFee))

	require.NoError(t, d.SetFeeHandler(ctx, "admin", "handler"))

	err = d.SetProtocolFee(ctx, "admin", big.NewInt(5))
	require.Error(t, err)
	require.Equal(t, xcallerr.CodeOnlyFeeHandler, xcallerr.CodeOf(err))

	require.NoError(t, d.SetProtocolFee(ctx, "handler", big.NewInt(5)))
}

func TestExecuteRollbackRejectsCallerOtherThanOriginalCaller(t *testing.T) {
	ctx := context.Background()
	src, srcStore := newDispatcher(t, peerFromNid, "admin")
	dst, _ := newDispatcher(t, selfNid, "admin")

	conn := newFakeConnection("conn-a")
	conn.peer = dst
	src.RegisterConnection("conn-a", conn)

	replyConn := newFakeConnection("conn-a-reverse")
	replyConn.peer = src
	dst.RegisterConnection("conn-a", replyConn)
	require.NoError(t, dst.SetDefaultConnection(ctx, "admin", peerFromNid, "conn-a"))
	dst.RegisterDApp("receiver", mockdapp.New())

	msg, err := wire.EncodeCallMessageWithRollback(wire.CallMessageWithRollback{Data: []byte("rollback"), Rollback: []byte("undo")})
	require.NoError(t, err)
	env := wire.Envelope{MessageType: uint8(wire.MessageTypeCallMessageWithRollback), Message: msg, Sources: []string{"conn-a"}}

	sn, err := src.SendCall(ctx, "caller", true, env, wire.NewNetworkAddress(selfNid, "receiver"))
	require.NoError(t, err)
	require.NoError(t, dst.ExecuteCall(ctx, big.NewInt(1), []byte("rollback")))

	rb, found, err := srcStore.GetRollback(ctx, sn)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, rb.Enabled)

	src.RegisterDApp("caller", mockdapp.New())
	src.RegisterDApp("impostor", mockdapp.New())

	err = src.ExecuteRollback(ctx, "impostor", sn)
	require.Error(t, err)
	require.Equal(t, xcallerr.CodeOnlyCaller, xcallerr.CodeOf(err))

	_, found, err = srcStore.GetRollback(ctx, sn)
	require.NoError(t, err)
	require.True(t, found, "rejected caller must not consume the rollback record")

	require.NoError(t, src.ExecuteRollback(ctx, "caller", sn))
}

func TestSendCallRejectsOversizedRollback(t *testing.T) {
	ctx := context.Background()
	src, _ := newDispatcher(t, peerFromNid, "admin")
	conn := newFakeConnection("conn-a")
	src.RegisterConnection("conn-a", conn)

	oversized := make([]byte, wire.MaxRollbackSize+1)
	msg, err := wire.EncodeCallMessageWithRollback(wire.CallMessageWithRollback{Data: []byte("hi"), Rollback: oversized})
	require.NoError(t, err)
	env := wire.Envelope{MessageType: uint8(wire.MessageTypeCallMessageWithRollback), Message: msg, Sources: []string{"conn-a"}}

	_, err = src.SendCall(ctx, "caller", true, env, wire.NewNetworkAddress(selfNid, "receiver"))
	require.Error(t, err)
}
