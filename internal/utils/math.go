package utils

import (
	"fmt"
	"math/big"
	"strings"

	"private-lending/internal/errs"
)

// MaxUint256 is 2^256 - 1
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Min returns the smaller of a or b
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a or b
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MinBig returns the smaller of a or b
func MinBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

// ParseAmount parses a base-10 uint256, ErrValidation when malformed, negative or too large
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid amount %q", errs.ErrValidation, s)
	}
	if v.Sign() < 0 || v.Cmp(MaxUint256) > 0 {
		return nil, fmt.Errorf("%w: amount %s out of uint256 range", errs.ErrValidation, s)
	}
	return v, nil
}

// ParsePositiveAmount is ParseAmount that also rejects zero
func ParsePositiveAmount(s string) (*big.Int, error) {
	v, err := ParseAmount(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() == 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", errs.ErrValidation)
	}
	return v, nil
}

// StoredBig reads a decimal stored by this service. Empty means zero.
func StoredBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
