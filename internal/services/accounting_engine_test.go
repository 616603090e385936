package services

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"private-lending/internal/errs"
)

func ray(num, den int64) *big.Int {
	v := new(big.Int).Mul(RAY, big.NewInt(num))
	return v.Quo(v, big.NewInt(den))
}

func TestAccrueIndex(t *testing.T) {
	tests := []struct {
		name    string
		rate    uint32
		elapsed int64
		want    *big.Int
	}{
		{"no time", 10000, 0, RAY},
		{"negative time", 10000, -100, RAY},
		{"zero rate", 0, SecondsPerYear, RAY},
		{"full year at 100%", 10000, SecondsPerYear, ray(2, 1)},
		{"half year at 10%", 1000, SecondsPerYear / 2, ray(105, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0, accrueIndex(RAY, tt.rate, tt.elapsed).Cmp(tt.want))
		})
	}
}

func TestMarketAccrue(t *testing.T) {
	m := NewMarket("0xtoken", 1000)
	m.BorrowRate = 10000
	m.SupplyRate = 5000

	m.Accrue(1000 + SecondsPerYear)
	assert.Equal(t, 0, m.BorrowIndex.Cmp(ray(2, 1)))
	assert.Equal(t, 0, m.SupplyIndex.Cmp(ray(3, 2)))

	before := new(big.Int).Set(m.BorrowIndex)
	m.Accrue(500)
	assert.Equal(t, 0, m.BorrowIndex.Cmp(before), "clock moving backwards accrues nothing")
	assert.Equal(t, int64(1000+SecondsPerYear), m.LastUpdate)

	cp := m.Accrued(1000 + 2*SecondsPerYear)
	assert.Equal(t, 0, m.BorrowIndex.Cmp(before), "Accrued leaves the receiver untouched")
	assert.Equal(t, 1, cp.BorrowIndex.Cmp(before))
}

func TestScalingRounding(t *testing.T) {
	index := ray(3, 2)

	assert.Equal(t, "0", ScaleDown(big.NewInt(1), index).String())
	assert.Equal(t, "1", ScaleUp(big.NewInt(1), index).String())
	assert.Equal(t, "1", Underlying(big.NewInt(1), index).String())
	assert.Equal(t, "2", UnderlyingUp(big.NewInt(1), index).String())

	// exact multiples do not round
	assert.Equal(t, "200", ScaleDown(big.NewInt(300), index).String())
	assert.Equal(t, "200", ScaleUp(big.NewInt(300), index).String())
	assert.Equal(t, "300", UnderlyingUp(big.NewInt(200), index).String())
}

func TestComputeHealth(t *testing.T) {
	t.Run("no debt", func(t *testing.T) {
		h := ComputeHealth([]Holding{{Supplied: big.NewInt(10), Price: onePrice, LTV: 7500, LiquidationThreshold: 8000}})
		assert.True(t, h.Infinite)
		assert.True(t, h.Healthy())
		assert.Equal(t, "1000000000", h.CollateralValue.String())
		assert.Equal(t, "750000000", h.BorrowCapacity.String())
	})

	t.Run("empty account", func(t *testing.T) {
		h := ComputeHealth(nil)
		assert.True(t, h.Infinite)
	})

	t.Run("boundary", func(t *testing.T) {
		h := ComputeHealth([]Holding{
			{Supplied: big.NewInt(1000), Price: onePrice, LTV: 7500, LiquidationThreshold: 8000},
			{Debt: big.NewInt(800), Price: onePrice},
		})
		assert.False(t, h.Infinite)
		assert.Equal(t, 0, h.HealthFactor.Cmp(WAD))
		assert.True(t, h.Healthy())

		h = ComputeHealth([]Holding{
			{Supplied: big.NewInt(1000), Price: onePrice, LTV: 7500, LiquidationThreshold: 8000},
			{Debt: big.NewInt(801), Price: onePrice},
		})
		assert.False(t, h.Healthy())
	})

	t.Run("prices weight each market", func(t *testing.T) {
		h := ComputeHealth([]Holding{
			{Supplied: big.NewInt(100), Price: big.NewInt(2 * 100000000), LTV: 5000, LiquidationThreshold: 5000},
			{Debt: big.NewInt(50), Price: onePrice},
		})
		// 100*2*0.5 / 50 = 2
		assert.Equal(t, 0, h.HealthFactor.Cmp(new(big.Int).Mul(WAD, big.NewInt(2))))
	})
}

func TestPlanLiquidation(t *testing.T) {
	t.Run("close factor caps the repayment", func(t *testing.T) {
		plan, err := PlanLiquidation(big.NewInt(800), big.NewInt(1000), big.NewInt(10000), onePrice, onePrice, 5000, 500)
		require.NoError(t, err)
		assert.Equal(t, "500", plan.Repaid.String())
		assert.Equal(t, "525", plan.Seized.String())
	})

	t.Run("offer below the cap", func(t *testing.T) {
		plan, err := PlanLiquidation(big.NewInt(100), big.NewInt(1000), big.NewInt(10000), onePrice, onePrice, 5000, 500)
		require.NoError(t, err)
		assert.Equal(t, "100", plan.Repaid.String())
		assert.Equal(t, "105", plan.Seized.String())
	})

	t.Run("seizure capped at supply", func(t *testing.T) {
		plan, err := PlanLiquidation(big.NewInt(800), big.NewInt(1000), big.NewInt(300), onePrice, onePrice, 5000, 500)
		require.NoError(t, err)
		assert.Equal(t, "300", plan.Seized.String())
	})

	t.Run("collateral priced higher", func(t *testing.T) {
		plan, err := PlanLiquidation(big.NewInt(500), big.NewInt(1000), big.NewInt(10000), onePrice, big.NewInt(2*100000000), 5000, 500)
		require.NoError(t, err)
		assert.Equal(t, "262", plan.Seized.String())
	})

	t.Run("zero close factor allows the full debt", func(t *testing.T) {
		plan, err := PlanLiquidation(big.NewInt(5000), big.NewInt(1000), big.NewInt(10000), onePrice, onePrice, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, "1000", plan.Repaid.String())
	})

	t.Run("no debt", func(t *testing.T) {
		_, err := PlanLiquidation(big.NewInt(1), big.NewInt(0), big.NewInt(1), onePrice, onePrice, 5000, 500)
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("zero collateral price", func(t *testing.T) {
		_, err := PlanLiquidation(big.NewInt(1), big.NewInt(10), big.NewInt(1), onePrice, big.NewInt(0), 5000, 500)
		assert.ErrorIs(t, err, errs.ErrOracle)
	})
}

func TestValidateRiskParams(t *testing.T) {
	tests := []struct {
		ltv, lt, bonus uint32
		ok             bool
	}{
		{7500, 8000, 500, true},
		{8000, 8000, 0, true},
		{0, 10000, 10000, true},
		{8001, 8000, 500, false},
		{7500, 10001, 500, false},
		{7500, 8000, 10001, false},
	}
	for _, tt := range tests {
		err := ValidateRiskParams(tt.ltv, tt.lt, tt.bonus)
		if tt.ok {
			assert.NoError(t, err, "ltv=%d lt=%d bonus=%d", tt.ltv, tt.lt, tt.bonus)
		} else {
			assert.ErrorIs(t, err, errs.ErrValidation, "ltv=%d lt=%d bonus=%d", tt.ltv, tt.lt, tt.bonus)
		}
	}
}
