package services

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"private-lending/internal/envelope"
	"private-lending/internal/errs"
	"private-lending/internal/transport"
)

func TestSubmitAction(t *testing.T) {
	h := newHarness(t)
	deposit := h.depositErc20(aliceAddr, tokenA, 100)
	data := h.seal(h.payload(envelope.ActionSupply, tokenA, 100, aliceAddr, deposit))

	t.Run("unknown deposit", func(t *testing.T) {
		_, err := h.relay.SubmitAction(h.ctx, aliceAddr, coreDomain, common.HexToHash("0x99"), data)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("not the depositor", func(t *testing.T) {
		_, err := h.relay.SubmitAction(h.ctx, bobAddr, coreDomain, deposit, data)
		assert.ErrorIs(t, err, errs.ErrAuthorization)
	})

	t.Run("no router for destination", func(t *testing.T) {
		_, err := h.relay.SubmitAction(h.ctx, aliceAddr, 999, deposit, data)
		assert.ErrorIs(t, err, errs.ErrConfig)
	})

	t.Run("bad envelope", func(t *testing.T) {
		_, err := h.relay.SubmitAction(h.ctx, aliceAddr, coreDomain, deposit, []byte("not an envelope"))
		assert.ErrorIs(t, err, errs.ErrFraming)
	})

	res, err := h.relay.SubmitAction(h.ctx, aliceAddr, coreDomain, deposit, data)
	require.NoError(t, err)
	assert.Equal(t, 1, h.mailbox.Pending())

	t.Run("duplicate ciphertext", func(t *testing.T) {
		_, err := h.relay.SubmitAction(h.ctx, aliceAddr, coreDomain, deposit, data)
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.Equal(t, 1, h.mailbox.Pending(), "nothing dispatched for the duplicate")
	})

	env, err := envelope.DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256Hash(env.Ciphertext), res.CiphertextHash)
	assert.Equal(t, ActionHandle(ingressDomain, ingressRouter, res.CiphertextHash), res.ActionHandle)

	found, err := h.relay.LookupAction(h.ctx, res.CiphertextHash)
	require.NoError(t, err)
	assert.Equal(t, res.ActionHandle.Hex(), found.ActionHandle)

	// the core derives the same handle on receipt
	h.relayAll()
	action, err := h.processor.GetAction(h.ctx, res.ActionHandle)
	require.NoError(t, err)
	assert.Equal(t, res.CiphertextHash.Hex(), action.CiphertextHash)
	assert.Equal(t, deposit.Hex(), action.DepositHandle)
	assert.False(t, action.Processed)
}

func TestActionHandlesAreDistinct(t *testing.T) {
	h := newHarness(t)
	deposit := h.depositErc20(aliceAddr, tokenA, 100)

	seen := map[common.Hash]common.Hash{}
	for i := 0; i < 5; i++ {
		data := h.seal(h.payload(envelope.ActionSupply, tokenA, 100, aliceAddr, deposit))
		res, err := h.relay.SubmitAction(h.ctx, aliceAddr, coreDomain, deposit, data)
		require.NoError(t, err)
		if prev, ok := seen[res.ActionHandle]; ok {
			t.Fatalf("handle %s reused for ciphertexts %s and %s", res.ActionHandle.Hex(), prev.Hex(), res.CiphertextHash.Hex())
		}
		seen[res.ActionHandle] = res.CiphertextHash
	}

	// same ciphertext from another origin domain or router yields another handle
	ct := common.HexToHash("0x01")
	assert.NotEqual(t, ActionHandle(1, ingressRouter, ct), ActionHandle(2, ingressRouter, ct))
	assert.NotEqual(t, ActionHandle(1, ingressRouter, ct), ActionHandle(1, coreRouter, ct))
}

func TestProcessorReceive(t *testing.T) {
	h := newHarness(t)
	deposit := h.depositErc20(aliceAddr, tokenA, 100)
	data := h.seal(h.payload(envelope.ActionSupply, tokenA, 100, aliceAddr, deposit))
	body, err := (&transport.ActionMessage{
		DepositHandle: deposit,
		Depositor:     aliceAddr,
		Token:         tokenA,
		Amount:        bigInt(100),
		Envelope:      data,
	}).Encode()
	require.NoError(t, err)

	err = h.processor.HandleMessage(h.ctx, ingressDomain, coreRouter, body)
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	require.NoError(t, h.processor.HandleMessage(h.ctx, ingressDomain, ingressRouter, body))
	require.NoError(t, h.processor.HandleMessage(h.ctx, ingressDomain, ingressRouter, body), "replay is a no-op")

	pending, err := h.processor.PendingActions(h.ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	badEnvelope, err := (&transport.ActionMessage{
		DepositHandle: deposit,
		Depositor:     aliceAddr,
		Token:         tokenA,
		Amount:        bigInt(100),
		Envelope:      []byte{0x01},
	}).Encode()
	require.NoError(t, err)
	err = h.processor.HandleMessage(h.ctx, ingressDomain, ingressRouter, badEnvelope)
	assert.ErrorIs(t, err, errs.ErrFraming)
}
