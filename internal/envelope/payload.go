package envelope

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"private-lending/internal/errs"
)

// ActionType enumerates the lending instructions.
type ActionType uint8

const (
	ActionSupply    ActionType = 0
	ActionBorrow    ActionType = 1
	ActionRepay     ActionType = 2
	ActionWithdraw  ActionType = 3
	ActionLiquidate ActionType = 4
)

func (t ActionType) String() string {
	switch t {
	case ActionSupply:
		return "SUPPLY"
	case ActionBorrow:
		return "BORROW"
	case ActionRepay:
		return "REPAY"
	case ActionWithdraw:
		return "WITHDRAW"
	case ActionLiquidate:
		return "LIQUIDATE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	return t <= ActionLiquidate
}

// Payload is the decrypted action instruction.
// Wire format:
//
//	struct ActionPayload {
//	    uint8   actionType;
//	    address token;
//	    uint256 amount;
//	    address onBehalf;
//	    bytes32 depositId;
//	    bool    isNative;
//	    bytes   memo;
//	}
type Payload struct {
	ActionType    ActionType
	Token         common.Address
	Amount        *big.Int
	OnBehalf      common.Address
	DepositHandle common.Hash
	IsNative      bool
	Memo          []byte
}

var payloadArgs = abi.Arguments{
	{Name: "actionType", Type: MustNewType("uint8")},
	{Name: "token", Type: MustNewType("address")},
	{Name: "amount", Type: MustNewType("uint256")},
	{Name: "onBehalf", Type: MustNewType("address")},
	{Name: "depositId", Type: MustNewType("bytes32")},
	{Name: "isNative", Type: MustNewType("bool")},
	{Name: "memo", Type: MustNewType("bytes")},
}

// Encode ABI-encodes the payload as a tuple.
func (p *Payload) Encode() ([]byte, error) {
	if p.Amount == nil || p.Amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must be a non-negative integer", errs.ErrValidation)
	}
	memo := p.Memo
	if memo == nil {
		memo = []byte{}
	}
	return PackTuple(payloadArgs, uint8(p.ActionType), p.Token, p.Amount, p.OnBehalf, [32]byte(p.DepositHandle), p.IsNative, memo)
}

// DecodePayload parses an ABI-encoded payload tuple.
func DecodePayload(data []byte) (*Payload, error) {
	unpacked, err := UnpackTuple(payloadArgs, data)
	if err != nil {
		return nil, err
	}

	p := &Payload{
		ActionType:    ActionType(unpacked[0].(uint8)),
		Token:         unpacked[1].(common.Address),
		Amount:        unpacked[2].(*big.Int),
		OnBehalf:      unpacked[3].(common.Address),
		DepositHandle: common.Hash(unpacked[4].([32]byte)),
		IsNative:      unpacked[5].(bool),
		Memo:          unpacked[6].([]byte),
	}
	if !p.ActionType.Valid() {
		return nil, fmt.Errorf("%w: unknown action type %d", errs.ErrValidation, uint8(p.ActionType))
	}
	return p, nil
}

// CollateralToken returns the collateral market named by a LIQUIDATE memo.
// A memo of exactly 20 bytes is read as an address; anything else means the debt market.
func (p *Payload) CollateralToken() (common.Address, bool) {
	if len(p.Memo) != common.AddressLength {
		return common.Address{}, false
	}
	return common.BytesToAddress(p.Memo), true
}

// SealPayload encodes and encrypts p to the vault public key.
func SealPayload(p *Payload, recipientPublicKey []byte) (*Envelope, error) {
	plaintext, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return Encode(plaintext, recipientPublicKey)
}

// OpenPayload decrypts env and parses the payload inside.
// A plaintext that is not a payload tuple is reported as a decryption failure.
func OpenPayload(env *Envelope, recipientPrivateKey []byte) (*Payload, error) {
	plaintext, err := Decode(env, recipientPrivateKey)
	if err != nil {
		return nil, err
	}
	p, err := DecodePayload(plaintext)
	if errors.Is(err, errs.ErrValidation) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", errs.ErrDecryption, err)
	}
	return p, nil
}
