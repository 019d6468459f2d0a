package centralized_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/icon-project/xcall-core/internal/connection"
	"github.com/icon-project/xcall-core/internal/connection/centralized"
	"github.com/icon-project/xcall-core/internal/store/memstore"
)

type recordingHandler struct {
	calls []call
}

type call struct {
	fromNid, conn string
	payload       []byte
}

func (h *recordingHandler) HandleMessage(_ context.Context, fromNid, conn string, payload []byte) error {
	h.calls = append(h.calls, call{fromNid, conn, payload})
	return nil
}

func TestRecvMessageRejectsNonRelayer(t *testing.T) {
	h := &recordingHandler{}
	c := centralized.New("admin", "relayer", memstore.NewReceiptStore(), h)
	err := c.RecvMessage(context.Background(), "stranger", "0x1.icon", big.NewInt(1), []byte("x"))
	require.Error(t, err)
	require.Empty(t, h.calls)
}

func TestRecvMessageRejectsDuplicateReceipt(t *testing.T) {
	h := &recordingHandler{}
	c := centralized.New("admin", "relayer", memstore.NewReceiptStore(), h)
	ctx := context.Background()

	require.NoError(t, c.RecvMessage(ctx, "relayer", "0x1.icon", big.NewInt(1), []byte("x")))
	require.Len(t, h.calls, 1)

	err := c.RecvMessage(ctx, "relayer", "0x1.icon", big.NewInt(1), []byte("x"))
	require.Error(t, err)
	require.Len(t, h.calls, 1, "duplicate (src_network, conn_sn) must not reach the handler twice")
}

func TestSendMessageChargesConfiguredFees(t *testing.T) {
	h := &recordingHandler{}
	c := centralized.New("admin", "relayer", memstore.NewReceiptStore(), h)
	ctx := context.Background()

	require.NoError(t, c.SetFees("admin", "0x2.eth", big.NewInt(10), big.NewInt(5)))

	require.NoError(t, c.SendMessage(ctx, "0x2.eth", connection.ReplyModeForSn(big.NewInt(3)), []byte("msg")))
	fee, err := c.ClaimFees("admin", "0x2.eth")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(15), fee)

	// A Result reply is fee-exempt.
	require.NoError(t, c.SendMessage(ctx, "0x2.eth", connection.ReplyModeResult, []byte("result")))
	fee, err = c.ClaimFees("admin", "0x2.eth")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), fee)
}

func TestSendMessageOneWayChargesMessageFeeOnly(t *testing.T) {
	h := &recordingHandler{}
	c := centralized.New("admin", "relayer", memstore.NewReceiptStore(), h)
	ctx := context.Background()
	require.NoError(t, c.SetFees("admin", "0x2.eth", big.NewInt(10), big.NewInt(5)))

	require.NoError(t, c.SendMessage(ctx, "0x2.eth", connection.ReplyModeNone, []byte("msg")))
	fee, err := c.ClaimFees("admin", "0x2.eth")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10), fee)
}

func TestClaimFeesRequiresAdmin(t *testing.T) {
	h := &recordingHandler{}
	c := centralized.New("admin", "relayer", memstore.NewReceiptStore(), h)
	_, err := c.ClaimFees("stranger", "0x2.eth")
	require.Error(t, err)
}

func TestOutboundDrainsQueue(t *testing.T) {
	h := &recordingHandler{}
	c := centralized.New("admin", "relayer", memstore.NewReceiptStore(), h)
	ctx := context.Background()
	require.NoError(t, c.SendMessage(ctx, "0x2.eth", connection.ReplyModeNone, []byte("msg")))

	out := c.Outbound()
	require.Len(t, out, 1)
	require.Equal(t, big.NewInt(1), out[0].ConnSn)
	require.Empty(t, c.Outbound())
}
