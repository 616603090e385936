package services

import (
	"fmt"
	"math/big"

	"private-lending/internal/errs"
	"private-lending/internal/models"
	"private-lending/internal/utils"
)

// Fixed point units used by the accounting engine
var (
	RAY = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)
	WAD = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

const (
	BasisPoints    = 10000
	SecondsPerYear = 31536000
)

// Market is the in-memory form of a models.TokenConfig.
// Indices are RAY; totals are scaled units.
type Market struct {
	Token                string
	Enabled              bool
	LTV                  uint32
	LiquidationThreshold uint32
	LiquidationBonus     uint32
	BorrowRate           uint32
	SupplyRate           uint32
	SupplyIndex          *big.Int
	BorrowIndex          *big.Int
	TotalSupply          *big.Int
	TotalBorrow          *big.Int
	LastUpdate           int64
}

// NewMarket returns a fresh market with both indices at RAY
func NewMarket(token string, now int64) *Market {
	return &Market{
		Token:       token,
		SupplyIndex: new(big.Int).Set(RAY),
		BorrowIndex: new(big.Int).Set(RAY),
		TotalSupply: new(big.Int),
		TotalBorrow: new(big.Int),
		LastUpdate:  now,
	}
}

// MarketFromModel converts a stored token config
func MarketFromModel(cfg *models.TokenConfig) *Market {
	m := &Market{
		Token:                cfg.Token,
		Enabled:              cfg.Enabled,
		LTV:                  cfg.LTV,
		LiquidationThreshold: cfg.LiquidationThreshold,
		LiquidationBonus:     cfg.LiquidationBonus,
		BorrowRate:           cfg.BorrowRate,
		SupplyRate:           cfg.SupplyRate,
		SupplyIndex:          utils.StoredBig(cfg.SupplyIndex),
		BorrowIndex:          utils.StoredBig(cfg.BorrowIndex),
		TotalSupply:          utils.StoredBig(cfg.TotalSupply),
		TotalBorrow:          utils.StoredBig(cfg.TotalBorrow),
		LastUpdate:           cfg.LastUpdate,
	}
	if m.SupplyIndex.Sign() == 0 {
		m.SupplyIndex.Set(RAY)
	}
	if m.BorrowIndex.Sign() == 0 {
		m.BorrowIndex.Set(RAY)
	}
	return m
}

// ToModel writes the market back into cfg, keeping its timestamps
func (m *Market) ToModel(cfg *models.TokenConfig) {
	cfg.Token = m.Token
	cfg.Enabled = m.Enabled
	cfg.LTV = m.LTV
	cfg.LiquidationThreshold = m.LiquidationThreshold
	cfg.LiquidationBonus = m.LiquidationBonus
	cfg.BorrowRate = m.BorrowRate
	cfg.SupplyRate = m.SupplyRate
	cfg.SupplyIndex = m.SupplyIndex.String()
	cfg.BorrowIndex = m.BorrowIndex.String()
	cfg.TotalSupply = m.TotalSupply.String()
	cfg.TotalBorrow = m.TotalBorrow.String()
	cfg.LastUpdate = m.LastUpdate
}

// accrueIndex returns index + index*rate*elapsed/(BasisPoints*SecondsPerYear)
func accrueIndex(index *big.Int, rateBps uint32, elapsed int64) *big.Int {
	if elapsed <= 0 || rateBps == 0 {
		return new(big.Int).Set(index)
	}
	growth := new(big.Int).Mul(index, big.NewInt(int64(rateBps)))
	growth.Mul(growth, big.NewInt(elapsed))
	growth.Quo(growth, big.NewInt(BasisPoints*SecondsPerYear))
	return growth.Add(growth, index)
}

// Accrue advances both indices to now. Indices never decrease and a clock
// that moves backwards is treated as no elapsed time.
func (m *Market) Accrue(now int64) {
	elapsed := now - m.LastUpdate
	if elapsed <= 0 {
		return
	}
	m.SupplyIndex = accrueIndex(m.SupplyIndex, m.SupplyRate, elapsed)
	m.BorrowIndex = accrueIndex(m.BorrowIndex, m.BorrowRate, elapsed)
	m.LastUpdate = now
}

// Accrued returns a copy of the market advanced to now
func (m *Market) Accrued(now int64) *Market {
	cp := *m
	cp.SupplyIndex = new(big.Int).Set(m.SupplyIndex)
	cp.BorrowIndex = new(big.Int).Set(m.BorrowIndex)
	cp.TotalSupply = new(big.Int).Set(m.TotalSupply)
	cp.TotalBorrow = new(big.Int).Set(m.TotalBorrow)
	cp.Accrue(now)
	return &cp
}

// ScaleDown converts an underlying amount to scaled units, rounding down
func ScaleDown(amount, index *big.Int) *big.Int {
	v := new(big.Int).Mul(amount, RAY)
	return v.Quo(v, index)
}

// ScaleUp converts an underlying amount to scaled units, rounding up
func ScaleUp(amount, index *big.Int) *big.Int {
	return ceilDiv(new(big.Int).Mul(amount, RAY), index)
}

// Underlying converts scaled units back to an underlying amount, rounding down
func Underlying(scaled, index *big.Int) *big.Int {
	v := new(big.Int).Mul(scaled, index)
	return v.Quo(v, RAY)
}

// UnderlyingUp converts scaled debt back to an underlying amount, rounding up
func UnderlyingUp(scaled, index *big.Int) *big.Int {
	return ceilDiv(new(big.Int).Mul(scaled, index), RAY)
}

func ceilDiv(n, d *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// subFloor returns a-b, or zero when b > a
func subFloor(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(a, b)
}

func bps(amount *big.Int, rate uint32) *big.Int {
	v := new(big.Int).Mul(amount, big.NewInt(int64(rate)))
	return v.Quo(v, big.NewInt(BasisPoints))
}

// Holding is one market of an account with underlying balances and the price read in this call.
type Holding struct {
	Token                string
	Supplied             *big.Int
	Debt                 *big.Int
	Price                *big.Int // 8 decimals
	LTV                  uint32
	LiquidationThreshold uint32
}

// Health is the collateral position of an account. Values are amount*price.
type Health struct {
	CollateralValue    *big.Int `json:"collateral_value"`
	WeightedCollateral *big.Int `json:"weighted_collateral"`
	BorrowCapacity     *big.Int `json:"borrow_capacity"`
	DebtValue          *big.Int `json:"debt_value"`
	HealthFactor       *big.Int `json:"health_factor"` // WAD, MaxUint256 when there is no debt
	Infinite           bool     `json:"infinite"`
}

// Healthy reports HF >= 1.0
func (h *Health) Healthy() bool {
	return h.Infinite || h.HealthFactor.Cmp(WAD) >= 0
}

// ComputeHealth sums collateral and debt across holdings. Pure.
func ComputeHealth(holdings []Holding) *Health {
	h := &Health{
		CollateralValue:    new(big.Int),
		WeightedCollateral: new(big.Int),
		BorrowCapacity:     new(big.Int),
		DebtValue:          new(big.Int),
	}
	for _, holding := range holdings {
		price := holding.Price
		if price == nil {
			price = new(big.Int)
		}
		if holding.Supplied != nil && holding.Supplied.Sign() > 0 {
			value := new(big.Int).Mul(holding.Supplied, price)
			h.CollateralValue.Add(h.CollateralValue, value)
			h.WeightedCollateral.Add(h.WeightedCollateral, bps(value, holding.LiquidationThreshold))
			h.BorrowCapacity.Add(h.BorrowCapacity, bps(value, holding.LTV))
		}
		if holding.Debt != nil && holding.Debt.Sign() > 0 {
			h.DebtValue.Add(h.DebtValue, new(big.Int).Mul(holding.Debt, price))
		}
	}
	if h.DebtValue.Sign() == 0 {
		h.Infinite = true
		h.HealthFactor = new(big.Int).Set(utils.MaxUint256)
		return h
	}
	hf := new(big.Int).Mul(h.WeightedCollateral, WAD)
	h.HealthFactor = hf.Quo(hf, h.DebtValue)
	return h
}

// Liquidation is the outcome of a liquidation, in underlying units
type Liquidation struct {
	Repaid *big.Int // debt repaid
	Seized *big.Int // collateral seized
}

// PlanLiquidation caps the repayment at closeFactor of the debt and seizes collateral worth
// repay*(10000+bonus)/10000 at the given prices, capped at the borrower's supply.
func PlanLiquidation(offered, debt, supplied, debtPrice, collateralPrice *big.Int, closeFactorBps, bonusBps uint32) (*Liquidation, error) {
	if debt.Sign() == 0 {
		return nil, fmt.Errorf("%w: borrower has no debt in this market", errs.ErrValidation)
	}
	if collateralPrice.Sign() <= 0 {
		return nil, fmt.Errorf("%w: collateral price is zero", errs.ErrOracle)
	}
	maxRepay := bps(debt, closeFactorBps)
	if maxRepay.Sign() == 0 {
		maxRepay = new(big.Int).Set(debt)
	}
	repay := new(big.Int).Set(utils.MinBig(offered, maxRepay))

	seize := new(big.Int).Mul(repay, debtPrice)
	seize.Mul(seize, big.NewInt(int64(BasisPoints+bonusBps)))
	seize.Quo(seize, new(big.Int).Mul(big.NewInt(BasisPoints), collateralPrice))
	return &Liquidation{
		Repaid: repay,
		Seized: new(big.Int).Set(utils.MinBig(seize, supplied)),
	}, nil
}

// ValidateRiskParams checks ltv <= liquidationThreshold <= 10000 and bonus <= 10000
func ValidateRiskParams(ltv, liquidationThreshold, bonus uint32) error {
	if liquidationThreshold > BasisPoints {
		return fmt.Errorf("%w: liquidation threshold %d exceeds %d bps", errs.ErrValidation, liquidationThreshold, BasisPoints)
	}
	if ltv > liquidationThreshold {
		return fmt.Errorf("%w: ltv %d exceeds liquidation threshold %d", errs.ErrValidation, ltv, liquidationThreshold)
	}
	if bonus > BasisPoints {
		return fmt.Errorf("%w: liquidation bonus %d exceeds %d bps", errs.ErrValidation, bonus, BasisPoints)
	}
	return nil
}
