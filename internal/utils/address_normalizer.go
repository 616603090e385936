package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"private-lending/internal/errs"
)

var (
	evmAddressPattern = regexp.MustCompile("^(0x|0X)?[0-9a-fA-F]{40}$")
	bytes32HexPattern = regexp.MustCompile("^(0x|0X)?[0-9a-fA-F]{64}$")
)

// IsEvmAddress check whether EVM address (20 bytes), with or without 0x
func IsEvmAddress(address string) bool {
	return evmAddressPattern.MatchString(address)
}

// IsBytes32Hex check whether a 32-byte hex value (handles, routers, hashes)
func IsBytes32Hex(value string) bool {
	return bytes32HexPattern.MatchString(value)
}

// ParseAddress parses an EVM address, ErrValidation when malformed
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !IsEvmAddress(address) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", errs.ErrValidation, address)
	}
	return common.HexToAddress(address), nil
}

// ParseHash parses a 0x-prefixed 32-byte value, ErrValidation when malformed
func ParseHash(value string) (common.Hash, error) {
	value = strings.TrimSpace(value)
	if !IsBytes32Hex(value) {
		return common.Hash{}, fmt.Errorf("%w: invalid bytes32 %q", errs.ErrValidation, value)
	}
	return common.HexToHash(value), nil
}

// AddressKey is the storage form of an address: lowercase with 0x prefix.
// Checksummed input and lowercase input map to the same row.
func AddressKey(address common.Address) string {
	return strings.ToLower(address.Hex())
}

// NormalizeAddress lowercases an address string and adds the 0x prefix if missing
func NormalizeAddress(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return ""
	}
	if !strings.HasPrefix(address, "0x") {
		address = "0x" + address
	}
	return address
}

// AddressToBytes32 left-pads an EVM address into a 32-byte router id
func AddressToBytes32(address common.Address) common.Hash {
	return common.BytesToHash(address.Bytes())
}

// Bytes32ToAddress extracts the low 20 bytes of a 32-byte router id
func Bytes32ToAddress(value common.Hash) common.Address {
	return common.BytesToAddress(value.Bytes()[12:])
}
