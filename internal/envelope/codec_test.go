package envelope

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"private-lending/internal/errs"
)

func TestNewEnvelope_PadsFifteenByteNonce(t *testing.T) {
	nonce := bytes.Repeat([]byte{0xab}, NonceSize)
	env, err := NewEnvelope(make([]byte, 32), nonce, []byte{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, nonce, env.Nonce[:NonceSize])
	assert.Equal(t, byte(0), env.Nonce[NonceSize])
	assert.Equal(t, nonce, env.AEADNonce())
}

func TestNewEnvelope_KeepsSixteenByteNonce(t *testing.T) {
	nonce := bytes.Repeat([]byte{0x11}, WireNonceSize)
	env, err := NewEnvelope(make([]byte, 32), nonce, nil)
	require.NoError(t, err)
	assert.Equal(t, nonce, env.Nonce[:])
	assert.Len(t, env.AEADNonce(), NonceSize)
}

func TestNewEnvelope_RejectsBadFraming(t *testing.T) {
	tests := []struct {
		name  string
		key   []byte
		nonce []byte
	}{
		{"short key", make([]byte, 31), make([]byte, 15)},
		{"long key", make([]byte, 33), make([]byte, 15)},
		{"short nonce", make([]byte, 32), make([]byte, 14)},
		{"long nonce", make([]byte, 32), make([]byte, 17)},
		{"empty nonce", make([]byte, 32), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnvelope(tt.key, tt.nonce, []byte{1})
			assert.ErrorIs(t, err, errs.ErrFraming)
		})
	}
}

func TestEnvelope_WireRoundTrip(t *testing.T) {
	env, err := NewEnvelope(bytes.Repeat([]byte{7}, 32), bytes.Repeat([]byte{9}, 15), []byte("ciphertext bytes"))
	require.NoError(t, err)

	data, err := env.Encode()
	require.NoError(t, err)
	// offset word points at the tuple body
	assert.Equal(t, byte(0x20), data[31])

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)

	h, err := env.Hex()
	require.NoError(t, err)
	fromHex, err := DecodeEnvelopeHex(h)
	require.NoError(t, err)
	assert.Equal(t, env, fromHex)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	_, err := DecodeEnvelope([]byte{1, 2, 3})
	assert.ErrorIs(t, err, errs.ErrFraming)

	bad := make([]byte, 64)
	bad[31] = 0xff
	_, err = DecodeEnvelope(bad)
	assert.ErrorIs(t, err, errs.ErrFraming)

	_, err = DecodeEnvelopeHex("0xzz")
	assert.ErrorIs(t, err, errs.ErrFraming)
}

func TestPayload_RoundTrip(t *testing.T) {
	p := &Payload{
		ActionType:    ActionBorrow,
		Token:         common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Amount:        big.NewInt(1_000_000),
		OnBehalf:      common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		DepositHandle: common.HexToHash("0x01"),
		IsNative:      false,
		Memo:          []byte("memo"),
	}
	data, err := p.Encode()
	require.NoError(t, err)

	decoded, err := DecodePayload(data)
	require.NoError(t, err)
	assert.Equal(t, p.ActionType, decoded.ActionType)
	assert.Equal(t, p.Token, decoded.Token)
	assert.Equal(t, 0, p.Amount.Cmp(decoded.Amount))
	assert.Equal(t, p.OnBehalf, decoded.OnBehalf)
	assert.Equal(t, p.DepositHandle, decoded.DepositHandle)
	assert.Equal(t, p.Memo, decoded.Memo)
	assert.Equal(t, "BORROW", decoded.ActionType.String())
}

func TestDecodePayload_UnknownActionType(t *testing.T) {
	p := &Payload{ActionType: ActionType(9), Amount: big.NewInt(1)}
	data, err := p.Encode()
	require.NoError(t, err)

	_, err = DecodePayload(data)
	assert.ErrorIs(t, err, errs.ErrValidation)
}
