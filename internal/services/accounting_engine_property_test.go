//go:build property
// +build property

package services

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// indexFrom maps a generated value onto an index in [RAY, 11*RAY)
func indexFrom(extra int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(extra), big.NewInt(1000000000))
	return v.Add(v, RAY)
}

func TestScalingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("debt never rounds in the borrower's favour", prop.ForAll(
		func(amount int64, extra int64) bool {
			index := indexFrom(extra)
			scaled := ScaleUp(big.NewInt(amount), index)
			return UnderlyingUp(scaled, index).Cmp(big.NewInt(amount)) >= 0
		},
		gen.Int64Range(0, 1<<50),
		gen.Int64Range(0, 10000000000000000),
	))

	properties.Property("supply never rounds in the supplier's favour", prop.ForAll(
		func(amount int64, extra int64) bool {
			index := indexFrom(extra)
			scaled := ScaleDown(big.NewInt(amount), index)
			return Underlying(scaled, index).Cmp(big.NewInt(amount)) <= 0
		},
		gen.Int64Range(0, 1<<50),
		gen.Int64Range(0, 10000000000000000),
	))

	properties.Property("indices never decrease", prop.ForAll(
		func(rate uint32, first, second int64) bool {
			m := NewMarket("0xtoken", 0)
			m.BorrowRate = rate
			m.SupplyRate = rate / 2
			m.Accrue(first)
			mid := new(big.Int).Set(m.BorrowIndex)
			midSupply := new(big.Int).Set(m.SupplyIndex)
			m.Accrue(second)
			return mid.Cmp(RAY) >= 0 && m.BorrowIndex.Cmp(mid) >= 0 && m.SupplyIndex.Cmp(midSupply) >= 0
		},
		gen.UInt32Range(0, 100000),
		gen.Int64Range(-SecondsPerYear, 10*SecondsPerYear),
		gen.Int64Range(-SecondsPerYear, 10*SecondsPerYear),
	))

	properties.Property("seizure never exceeds supply", prop.ForAll(
		func(offered, debt, supplied int64, bonus uint32) bool {
			plan, err := PlanLiquidation(big.NewInt(offered), big.NewInt(debt), big.NewInt(supplied), onePrice, onePrice, 5000, bonus)
			if err != nil {
				return debt == 0
			}
			return plan.Seized.Cmp(big.NewInt(supplied)) <= 0 && plan.Repaid.Cmp(big.NewInt(offered)) <= 0
		},
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
		gen.UInt32Range(0, 10000),
	))

	properties.TestingRun(t)
}
