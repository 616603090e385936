// Package envelope builds and parses the encrypted wire envelope that carries a lending
// action from the origin ledger to the confidential lending core.
package envelope

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"private-lending/internal/errs"
)

const (
	// PublicKeySize is the X25519 public key length carried in the envelope.
	PublicKeySize = 32
	// NonceSize is the logical Deoxys-II nonce length.
	NonceSize = 15
	// WireNonceSize is the fixed width of the nonce field on the wire (bytes16).
	WireNonceSize = 16
)

// MustNewType creates a new ABI type, panicking on error (for use in package-level vars)
func MustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("failed to create ABI type %s: %v", t, err))
	}
	return typ
}

// Envelope is the encrypted wrapper around an action payload.
// Wire format (Solidity abi.encode of a struct):
//
//	struct Envelope {
//	    bytes32 senderPublicKey;
//	    bytes16 nonce;
//	    bytes   ciphertext;
//	}
type Envelope struct {
	SenderPublicKey [PublicKeySize]byte
	Nonce           [WireNonceSize]byte
	Ciphertext      []byte
}

var envelopeArgs = abi.Arguments{
	{Name: "senderPublicKey", Type: MustNewType("bytes32")},
	{Name: "nonce", Type: MustNewType("bytes16")},
	{Name: "ciphertext", Type: MustNewType("bytes")},
}

// NewEnvelope validates raw primitive output and builds an Envelope.
// A 15-byte nonce is right-padded with a single zero byte; a 16-byte nonce is kept as is.
func NewEnvelope(senderPublicKey, nonce, ciphertext []byte) (*Envelope, error) {
	if len(senderPublicKey) != PublicKeySize {
		return nil, fmt.Errorf("%w: sender public key must be %d bytes, got %d", errs.ErrFraming, PublicKeySize, len(senderPublicKey))
	}
	if len(nonce) == NonceSize {
		nonce = append(append(make([]byte, 0, WireNonceSize), nonce...), 0)
	}
	if len(nonce) != WireNonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d or %d bytes, got %d", errs.ErrFraming, NonceSize, WireNonceSize, len(nonce))
	}

	env := &Envelope{Ciphertext: append([]byte(nil), ciphertext...)}
	copy(env.SenderPublicKey[:], senderPublicKey)
	copy(env.Nonce[:], nonce)
	return env, nil
}

// AEADNonce returns the logical 15-byte nonce: the wire field truncated back.
func (e *Envelope) AEADNonce() []byte {
	return append([]byte(nil), e.Nonce[:NonceSize]...)
}

// Encode ABI-encodes the envelope as a tuple (leading offset word followed by the tuple body).
func (e *Envelope) Encode() ([]byte, error) {
	return PackTuple(envelopeArgs, e.SenderPublicKey, e.Nonce, e.Ciphertext)
}

// Hex returns the 0x-prefixed wire encoding.
func (e *Envelope) Hex() (string, error) {
	data, err := e.Encode()
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(data), nil
}

// DecodeEnvelope parses the ABI-encoded envelope tuple.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	unpacked, err := UnpackTuple(envelopeArgs, data)
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		SenderPublicKey: unpacked[0].([32]byte),
		Nonce:           unpacked[1].([16]byte),
		Ciphertext:      unpacked[2].([]byte),
	}
	return env, nil
}

// DecodeEnvelopeHex parses a hex string (with or without 0x prefix).
func DecodeEnvelopeHex(s string) (*Envelope, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: hex decode failed: %v", errs.ErrFraming, err)
	}
	return DecodeEnvelope(data)
}

// PackTuple produces abi.encode(struct) for a dynamic struct: a 0x20 offset word then the members.
func PackTuple(args abi.Arguments, values ...interface{}) ([]byte, error) {
	body, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: abi pack failed: %v", errs.ErrFraming, err)
	}
	offset := make([]byte, 32)
	offset[31] = 0x20
	return append(offset, body...), nil
}

// UnpackTuple is the inverse of PackTuple. The first 32 bytes hold the offset to the tuple data.
func UnpackTuple(args abi.Arguments, data []byte) ([]interface{}, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("%w: data too short, need at least 32 bytes for offset", errs.ErrFraming)
	}

	offsetWord := new(big.Int).SetBytes(data[0:32])
	if !offsetWord.IsUint64() || offsetWord.Uint64() < 32 || offsetWord.Uint64() >= uint64(len(data)) {
		return nil, fmt.Errorf("%w: invalid struct offset %s (data length: %d)", errs.ErrFraming, offsetWord, len(data))
	}

	unpacked, err := args.Unpack(data[offsetWord.Uint64():])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unpack ABI data: %v", errs.ErrFraming, err)
	}
	if len(unpacked) != len(args) {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", errs.ErrFraming, len(args), len(unpacked))
	}
	return unpacked, nil
}
