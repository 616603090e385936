package transport

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"private-lending/internal/envelope"
	"private-lending/internal/errs"
)

// ActionMessage is sent from the origin ledger to the lending core.
//
//	(bytes32 depositHandle, address depositor, address token, uint256 amount, bool isNative, bytes envelope)
type ActionMessage struct {
	DepositHandle common.Hash
	Depositor     common.Address
	Token         common.Address
	Amount        *big.Int
	IsNative      bool
	Envelope      []byte
}

var actionMessageArgs = abi.Arguments{
	{Name: "depositHandle", Type: envelope.MustNewType("bytes32")},
	{Name: "depositor", Type: envelope.MustNewType("address")},
	{Name: "token", Type: envelope.MustNewType("address")},
	{Name: "amount", Type: envelope.MustNewType("uint256")},
	{Name: "isNative", Type: envelope.MustNewType("bool")},
	{Name: "envelope", Type: envelope.MustNewType("bytes")},
}

// Encode ABI-encodes the message body.
func (m *ActionMessage) Encode() ([]byte, error) {
	amount := m.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	return envelope.PackTuple(actionMessageArgs, [32]byte(m.DepositHandle), m.Depositor, m.Token, amount, m.IsNative, m.Envelope)
}

// DecodeActionMessage parses an action message body.
func DecodeActionMessage(data []byte) (*ActionMessage, error) {
	unpacked, err := envelope.UnpackTuple(actionMessageArgs, data)
	if err != nil {
		return nil, err
	}
	return &ActionMessage{
		DepositHandle: common.Hash(unpacked[0].([32]byte)),
		Depositor:     unpacked[1].(common.Address),
		Token:         unpacked[2].(common.Address),
		Amount:        unpacked[3].(*big.Int),
		IsNative:      unpacked[4].(bool),
		Envelope:      unpacked[5].([]byte),
	}, nil
}

// ReleaseKind selects how the origin ledger moves funds.
type ReleaseKind uint8

const (
	// ReleaseUnlock releases the deposit itself; at most once per deposit.
	ReleaseUnlock ReleaseKind = 1
	// ReleasePayout disburses borrowed funds from custody; at most once per action.
	ReleasePayout ReleaseKind = 2
)

func (k ReleaseKind) String() string {
	switch k {
	case ReleaseUnlock:
		return "UNLOCK"
	case ReleasePayout:
		return "PAYOUT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// ReleaseMessage is sent from the lending core back to the origin ledger.
//
//	(uint8 kind, bytes32 depositHandle, bytes32 actionHandle, address recipient, address token, uint256 amount, bool isNative)
type ReleaseMessage struct {
	Kind          ReleaseKind
	DepositHandle common.Hash
	ActionHandle  common.Hash
	Recipient     common.Address
	Token         common.Address
	Amount        *big.Int
	IsNative      bool
}

var releaseMessageArgs = abi.Arguments{
	{Name: "kind", Type: envelope.MustNewType("uint8")},
	{Name: "depositHandle", Type: envelope.MustNewType("bytes32")},
	{Name: "actionHandle", Type: envelope.MustNewType("bytes32")},
	{Name: "recipient", Type: envelope.MustNewType("address")},
	{Name: "token", Type: envelope.MustNewType("address")},
	{Name: "amount", Type: envelope.MustNewType("uint256")},
	{Name: "isNative", Type: envelope.MustNewType("bool")},
}

// Encode ABI-encodes the release body. The tuple is static, so it has no offset word.
func (m *ReleaseMessage) Encode() ([]byte, error) {
	amount := m.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	data, err := releaseMessageArgs.Pack(uint8(m.Kind), [32]byte(m.DepositHandle), [32]byte(m.ActionHandle), m.Recipient, m.Token, amount, m.IsNative)
	if err != nil {
		return nil, fmt.Errorf("%w: abi pack failed: %v", errs.ErrFraming, err)
	}
	return data, nil
}

// DecodeReleaseMessage parses a release body.
func DecodeReleaseMessage(data []byte) (*ReleaseMessage, error) {
	unpacked, err := releaseMessageArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unpack release message: %v", errs.ErrFraming, err)
	}
	m := &ReleaseMessage{
		Kind:          ReleaseKind(unpacked[0].(uint8)),
		DepositHandle: common.Hash(unpacked[1].([32]byte)),
		ActionHandle:  common.Hash(unpacked[2].([32]byte)),
		Recipient:     unpacked[3].(common.Address),
		Token:         unpacked[4].(common.Address),
		Amount:        unpacked[5].(*big.Int),
		IsNative:      unpacked[6].(bool),
	}
	if m.Kind != ReleaseUnlock && m.Kind != ReleasePayout {
		return nil, fmt.Errorf("%w: unknown release kind %d", errs.ErrValidation, uint8(m.Kind))
	}
	return m, nil
}
