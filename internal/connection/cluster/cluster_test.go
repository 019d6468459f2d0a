package cluster_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"math/big"
	"testing"

	gocrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/icon-project/xcall-core/internal/connection/cluster"
	"github.com/icon-project/xcall-core/internal/store/memstore"
)

type recordingHandler struct {
	calls int
}

func (h *recordingHandler) HandleMessage(context.Context, string, string, []byte) error {
	h.calls++
	return nil
}

func newSecp256k1Validator(t *testing.T) (*ecdsa.PrivateKey, cluster.Validator) {
	t.Helper()
	key, err := gocrypto.GenerateKey()
	require.NoError(t, err)
	return key, cluster.Validator{PubKey: gocrypto.CompressPubkey(&key.PublicKey)}
}

func signSecp256k1(t *testing.T, key *ecdsa.PrivateKey, digest []byte) []byte {
	t.Helper()
	sig, err := gocrypto.Sign(digest, key)
	require.NoError(t, err)
	return sig
}

func TestSubmitAcceptsOnceThresholdReached(t *testing.T) {
	h := &recordingHandler{}
	conn := cluster.New("admin", 2, cluster.SchemeSecp256k1, memstore.NewReceiptStore(), h)

	k1, v1 := newSecp256k1Validator(t)
	k2, v2 := newSecp256k1Validator(t)
	_, v3 := newSecp256k1Validator(t)
	require.NoError(t, conn.AddValidator("admin", v1))
	require.NoError(t, conn.AddValidator("admin", v2))
	require.NoError(t, conn.AddValidator("admin", v3))

	payload := []byte("cross-chain-payload")
	digest := gocrypto.Keccak256(payload)

	err := conn.Submit(context.Background(), "0x1.icon", big.NewInt(1), payload, [][]byte{signSecp256k1(t, k1, digest)})
	require.ErrorContains(t, err, "InsufficientSignatures")
	require.Zero(t, h.calls)

	err = conn.Submit(context.Background(), "0x1.icon", big.NewInt(1), payload, [][]byte{
		signSecp256k1(t, k1, digest),
		signSecp256k1(t, k2, digest),
	})
	require.NoError(t, err)
	require.Equal(t, 1, h.calls)
}

func TestSubmitRejectsDuplicateSignatureFromSameValidator(t *testing.T) {
	h := &recordingHandler{}
	conn := cluster.New("admin", 2, cluster.SchemeSecp256k1, memstore.NewReceiptStore(), h)

	k1, v1 := newSecp256k1Validator(t)
	_, v2 := newSecp256k1Validator(t)
	require.NoError(t, conn.AddValidator("admin", v1))
	require.NoError(t, conn.AddValidator("admin", v2))

	payload := []byte("payload")
	digest := gocrypto.Keccak256(payload)
	sig := signSecp256k1(t, k1, digest)

	err := conn.Submit(context.Background(), "0x1.icon", big.NewInt(1), payload, [][]byte{sig, sig})
	require.ErrorContains(t, err, "InsufficientSignatures")
	require.Zero(t, h.calls)
}

func TestSubmitRejectsUnknownSignature(t *testing.T) {
	h := &recordingHandler{}
	conn := cluster.New("admin", 1, cluster.SchemeSecp256k1, memstore.NewReceiptStore(), h)

	_, v1 := newSecp256k1Validator(t)
	require.NoError(t, conn.AddValidator("admin", v1))

	strangerKey, _ := newSecp256k1Validator(t)
	payload := []byte("payload")
	digest := gocrypto.Keccak256(payload)

	err := conn.Submit(context.Background(), "0x1.icon", big.NewInt(1), payload, [][]byte{signSecp256k1(t, strangerKey, digest)})
	require.ErrorContains(t, err, "InvalidSignature")
	require.Zero(t, h.calls)
}

func TestSubmitRejectsReplayOfSameConnSn(t *testing.T) {
	h := &recordingHandler{}
	conn := cluster.New("admin", 1, cluster.SchemeSecp256k1, memstore.NewReceiptStore(), h)

	k1, v1 := newSecp256k1Validator(t)
	require.NoError(t, conn.AddValidator("admin", v1))

	payload := []byte("payload")
	digest := gocrypto.Keccak256(payload)
	sig := signSecp256k1(t, k1, digest)

	require.NoError(t, conn.Submit(context.Background(), "0x1.icon", big.NewInt(9), payload, [][]byte{sig}))
	err := conn.Submit(context.Background(), "0x1.icon", big.NewInt(9), payload, [][]byte{sig})
	require.ErrorContains(t, err, "DuplicateMessage")
	require.Equal(t, 1, h.calls)
}

func TestSubmitAcceptsEd25519ValidatorSetOverSha256Digest(t *testing.T) {
	h := &recordingHandler{}
	conn := cluster.New("admin", 2, cluster.SchemeEd25519, memstore.NewReceiptStore(), h)

	edPub1, edPriv1, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	edPub2, edPriv2, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	v1 := cluster.Validator{PubKey: edPub1}
	v2 := cluster.Validator{PubKey: edPub2}

	require.NoError(t, conn.AddValidator("admin", v1))
	require.NoError(t, conn.AddValidator("admin", v2))

	payload := []byte("payload")
	sum := sha256.Sum256(payload)
	digest := sum[:]

	err = conn.Submit(context.Background(), "0x1.icon", big.NewInt(1), payload, [][]byte{
		ed25519.Sign(edPriv1, digest),
		ed25519.Sign(edPriv2, digest),
	})
	require.NoError(t, err)
	require.Equal(t, 1, h.calls)
}

func TestSubmitRejectsEd25519SignatureOverKeccakDigest(t *testing.T) {
	h := &recordingHandler{}
	conn := cluster.New("admin", 1, cluster.SchemeEd25519, memstore.NewReceiptStore(), h)

	edPub, edPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	require.NoError(t, conn.AddValidator("admin", cluster.Validator{PubKey: edPub}))

	payload := []byte("payload")
	keccakDigest := gocrypto.Keccak256(payload)

	err = conn.Submit(context.Background(), "0x1.icon", big.NewInt(1), payload, [][]byte{ed25519.Sign(edPriv, keccakDigest)})
	require.ErrorContains(t, err, "InvalidSignature")
	require.Zero(t, h.calls)
}

func TestRemoveValidatorRejectsDroppingBelowThreshold(t *testing.T) {
	h := &recordingHandler{}
	conn := cluster.New("admin", 2, cluster.SchemeSecp256k1, memstore.NewReceiptStore(), h)
	_, v1 := newSecp256k1Validator(t)
	_, v2 := newSecp256k1Validator(t)
	require.NoError(t, conn.AddValidator("admin", v1))
	require.NoError(t, conn.AddValidator("admin", v2))

	err := conn.RemoveValidator("admin", v1)
	require.ErrorContains(t, err, "ThresholdExceeded")
}
