package transport

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"private-lending/internal/errs"
)

var (
	routerA = common.HexToHash("0x00000000000000000000000000000000000000a0")
	routerB = common.HexToHash("0x00000000000000000000000000000000000000b0")
)

func TestMailbox_RelayDeliversAndReportsErrors(t *testing.T) {
	ctx := context.Background()
	mb := NewMailbox()

	var got []string
	require.NoError(t, mb.Register(23295, routerB, HandlerFunc(func(ctx context.Context, origin uint32, sender common.Hash, body []byte) error {
		assert.Equal(t, uint32(5003), origin)
		assert.Equal(t, routerA, sender)
		got = append(got, string(body))
		if string(body) == "bad" {
			return errs.ErrAuthorization
		}
		return nil
	})))
	assert.Error(t, mb.Register(23295, routerB, HandlerFunc(nil)), "duplicate registration")

	for _, body := range []string{"one", "bad", "two"} {
		require.NoError(t, mb.Dispatch(ctx, &Message{OriginDomain: 5003, Sender: routerA, DestinationDomain: 23295, Recipient: routerB, Body: []byte(body)}))
	}
	assert.Equal(t, 3, mb.Pending())

	deliveries := mb.Relay(ctx)
	require.Len(t, deliveries, 3)
	assert.NoError(t, deliveries[0].Err)
	assert.ErrorIs(t, deliveries[1].Err, errs.ErrAuthorization)
	assert.NoError(t, deliveries[2].Err)
	assert.Equal(t, []string{"one", "bad", "two"}, got)
	assert.Equal(t, 0, mb.Pending())
	assert.NotEmpty(t, deliveries[0].Message.ID)
}

func TestMailbox_NoRoute(t *testing.T) {
	ctx := context.Background()
	mb := NewMailbox()
	require.NoError(t, mb.Dispatch(ctx, &Message{DestinationDomain: 1, Recipient: routerA}))

	deliveries := mb.Relay(ctx)
	require.Len(t, deliveries, 1)
	assert.True(t, errors.Is(deliveries[0].Err, ErrNoRoute))
}

func TestMailbox_RelayFollowsReplies(t *testing.T) {
	ctx := context.Background()
	mb := NewMailbox()

	require.NoError(t, mb.Register(2, routerB, HandlerFunc(func(ctx context.Context, origin uint32, sender common.Hash, body []byte) error {
		return mb.Dispatch(ctx, &Message{OriginDomain: 2, Sender: routerB, DestinationDomain: 1, Recipient: routerA, Body: []byte("pong")})
	})))
	var pong bool
	require.NoError(t, mb.Register(1, routerA, HandlerFunc(func(ctx context.Context, origin uint32, sender common.Hash, body []byte) error {
		pong = string(body) == "pong"
		return nil
	})))

	require.NoError(t, mb.Dispatch(ctx, &Message{OriginDomain: 1, Sender: routerA, DestinationDomain: 2, Recipient: routerB, Body: []byte("ping")}))
	deliveries := mb.Relay(ctx)
	assert.Len(t, deliveries, 2)
	assert.True(t, pong)
}

func TestMailbox_Closed(t *testing.T) {
	mb := NewMailbox()
	require.NoError(t, mb.Close())
	assert.Error(t, mb.Dispatch(context.Background(), &Message{}))
}

func TestRouterToBytes32(t *testing.T) {
	h, err := RouterToBytes32("0x00000000000000000000000000000000000000a0")
	require.NoError(t, err)
	assert.Equal(t, routerA, h)

	h, err = RouterToBytes32(routerA.Hex())
	require.NoError(t, err)
	assert.Equal(t, routerA, h)

	_, err = RouterToBytes32("0x1234")
	assert.Error(t, err)
}

func TestNATSSubject(t *testing.T) {
	tr := NewNATSTransport(nil, "", 0)
	assert.Equal(t, "lending.mailbox.23295.00000000000000000000000000000000000000000000000000000000000000b0", tr.Subject(23295, routerB))
}

func TestActionMessage_RoundTrip(t *testing.T) {
	m := &ActionMessage{
		DepositHandle: common.HexToHash("0x01"),
		Depositor:     common.HexToAddress("0xaa"),
		Token:         common.Address{},
		Amount:        big.NewInt(1_000_000_000_000_000_000),
		IsNative:      true,
		Envelope:      []byte{1, 2, 3},
	}
	data, err := m.Encode()
	require.NoError(t, err)

	got, err := DecodeActionMessage(data)
	require.NoError(t, err)
	assert.Equal(t, m.DepositHandle, got.DepositHandle)
	assert.Equal(t, m.Depositor, got.Depositor)
	assert.Equal(t, 0, m.Amount.Cmp(got.Amount))
	assert.True(t, got.IsNative)
	assert.Equal(t, m.Envelope, got.Envelope)

	_, err = DecodeActionMessage(data[:40])
	assert.ErrorIs(t, err, errs.ErrFraming)
}

func TestReleaseMessage_RoundTrip(t *testing.T) {
	m := &ReleaseMessage{
		Kind:          ReleasePayout,
		DepositHandle: common.HexToHash("0x01"),
		ActionHandle:  common.HexToHash("0x02"),
		Recipient:     common.HexToAddress("0xbb"),
		Token:         common.HexToAddress("0xcc"),
		Amount:        big.NewInt(42),
	}
	data, err := m.Encode()
	require.NoError(t, err)
	assert.Len(t, data, 7*32)

	got, err := DecodeReleaseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, ReleasePayout, got.Kind)
	assert.Equal(t, "PAYOUT", got.Kind.String())
	assert.Equal(t, m.ActionHandle, got.ActionHandle)
	assert.Equal(t, int64(42), got.Amount.Int64())

	bad := *m
	bad.Kind = 9
	data, err = bad.Encode()
	require.NoError(t, err)
	_, err = DecodeReleaseMessage(data)
	assert.ErrorIs(t, err, errs.ErrValidation)
}
