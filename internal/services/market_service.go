package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"private-lending/internal/errs"
	"private-lending/internal/events"
	"private-lending/internal/metrics"
	"private-lending/internal/models"
	"private-lending/internal/repository"
	"private-lending/internal/utils"
)

// TokenParams are the owner-set parameters of a market
type TokenParams struct {
	LTV                  uint32  `json:"ltv"`
	LiquidationThreshold uint32  `json:"liquidation_threshold"`
	LiquidationBonus     *uint32 `json:"liquidation_bonus,omitempty"`
	BorrowRate           uint32  `json:"borrow_rate"`
	SupplyRate           uint32  `json:"supply_rate"`
	Enabled              *bool   `json:"enabled,omitempty"`
}

// MarketView is a market accrued to the time of the query with underlying totals
type MarketView struct {
	models.TokenConfig
	TotalSupplyUnderlying string `json:"total_supply_underlying"`
	TotalBorrowUnderlying string `json:"total_borrow_underlying"`
}

// PositionView is one market of an account in underlying units
type PositionView struct {
	Token    string `json:"token"`
	Supplied string `json:"supplied"`
	Debt     string `json:"debt"`
	Price    string `json:"price"`
}

// AccountHealth is the collateral report of an account
type AccountHealth struct {
	Account   string          `json:"account"`
	Health    *Health         `json:"health"`
	Positions []*PositionView `json:"positions"`
}

// MarketService owns token configuration and account health queries.
// The action processor shares its lock so configuration and execution never interleave.
type MarketService struct {
	db           *gorm.DB
	repo         repository.MarketRepository
	prices       *PriceOracleService
	owner        OwnerGate
	events       events.Publisher
	defaultBonus uint32
	clock        Clock
	mu           sync.Mutex
}

// NewMarketService creates a new market service
func NewMarketService(db *gorm.DB, repo repository.MarketRepository, prices *PriceOracleService, owner OwnerGate,
	publisher events.Publisher, defaultBonus uint32) *MarketService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &MarketService{
		db:           db,
		repo:         repo,
		prices:       prices,
		owner:        owner,
		events:       publisher,
		defaultBonus: defaultBonus,
	}
}

// SetClock replaces the time source
func (s *MarketService) SetClock(c Clock) {
	s.clock = c
}

// ConfigureToken creates or updates a market. Existing indices and totals are kept;
// interest up to now accrues at the old rates first. Owner only.
func (s *MarketService) ConfigureToken(ctx context.Context, caller, token common.Address, params TokenParams) (*models.TokenConfig, error) {
	if err := s.owner.Check(caller); err != nil {
		return nil, err
	}
	bonus := s.defaultBonus
	if params.LiquidationBonus != nil {
		bonus = *params.LiquidationBonus
	}
	if err := ValidateRiskParams(params.LTV, params.LiquidationThreshold, bonus); err != nil {
		return nil, err
	}
	enabled := true
	if params.Enabled != nil {
		enabled = *params.Enabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokenKey := utils.AddressKey(token)
	now := s.clock.now().Unix()
	var cfg *models.TokenConfig
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.GetTokenConfig(ctx, tokenKey)
		var market *Market
		switch {
		case err == nil:
			cfg = existing
			market = MarketFromModel(existing)
			market.Accrue(now)
		case errors.Is(err, errs.ErrNotFound):
			cfg = &models.TokenConfig{}
			market = NewMarket(tokenKey, now)
		default:
			return err
		}

		market.Enabled = enabled
		market.LTV = params.LTV
		market.LiquidationThreshold = params.LiquidationThreshold
		market.LiquidationBonus = bonus
		market.BorrowRate = params.BorrowRate
		market.SupplyRate = params.SupplyRate
		market.ToModel(cfg)
		return repo.SaveTokenConfig(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🔧 [Market] Configured %s: enabled=%v ltv=%d lt=%d bonus=%d borrow=%dbps supply=%dbps",
		tokenKey, enabled, params.LTV, params.LiquidationThreshold, bonus, params.BorrowRate, params.SupplyRate)
	s.events.Publish(events.TokenConfigured, cfg)
	return cfg, nil
}

// GetMarket returns a market accrued to now
func (s *MarketService) GetMarket(ctx context.Context, token common.Address) (*MarketView, error) {
	cfg, err := s.repo.GetTokenConfig(ctx, utils.AddressKey(token))
	if err != nil {
		return nil, err
	}
	return s.view(cfg), nil
}

// ListMarkets returns every configured market accrued to now
func (s *MarketService) ListMarkets(ctx context.Context) ([]*MarketView, error) {
	cfgs, err := s.repo.ListTokenConfigs(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*MarketView, 0, len(cfgs))
	for _, cfg := range cfgs {
		views = append(views, s.view(cfg))
	}
	return views, nil
}

// Tokens returns the addresses of all configured markets
func (s *MarketService) Tokens(ctx context.Context) ([]string, error) {
	cfgs, err := s.repo.ListTokenConfigs(ctx)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(cfgs))
	for _, cfg := range cfgs {
		tokens = append(tokens, cfg.Token)
	}
	return tokens, nil
}

func (s *MarketService) view(cfg *models.TokenConfig) *MarketView {
	market := MarketFromModel(cfg).Accrued(s.clock.now().Unix())
	view := &MarketView{
		TotalSupplyUnderlying: Underlying(market.TotalSupply, market.SupplyIndex).String(),
		TotalBorrowUnderlying: UnderlyingUp(market.TotalBorrow, market.BorrowIndex).String(),
	}
	view.TokenConfig = *cfg
	market.ToModel(&view.TokenConfig)
	return view
}

// AccountHealth reports collateral, debt, borrow capacity and health factor of an account
func (s *MarketService) AccountHealth(ctx context.Context, account common.Address) (*AccountHealth, error) {
	accountKey := utils.AddressKey(account)
	holdings, err := s.holdings(ctx, s.db, accountKey, s.clock.now().Unix(), map[string]*big.Int{})
	if err != nil {
		return nil, err
	}
	report := &AccountHealth{Account: accountKey, Health: ComputeHealth(holdings)}
	for _, h := range holdings {
		report.Positions = append(report.Positions, &PositionView{
			Token:    h.Token,
			Supplied: h.Supplied.String(),
			Debt:     h.Debt.String(),
			Price:    h.Price.String(),
		})
	}
	return report, nil
}

// holdings loads the account's non-empty positions through tx, accrued to now, with
// fresh prices. prices caches reads for the duration of one call.
func (s *MarketService) holdings(ctx context.Context, tx *gorm.DB, account string, now int64, prices map[string]*big.Int) ([]Holding, error) {
	repo := s.repo.WithTx(tx)
	positions, err := repo.FindPositionsByAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	var holdings []Holding
	for _, position := range positions {
		scaledSupply := utils.StoredBig(position.ScaledSupply)
		scaledDebt := utils.StoredBig(position.ScaledDebt)
		if scaledSupply.Sign() == 0 && scaledDebt.Sign() == 0 {
			continue
		}
		cfg, err := repo.GetTokenConfig(ctx, position.Token)
		if err != nil {
			return nil, err
		}
		market := MarketFromModel(cfg).Accrued(now)

		price, ok := prices[position.Token]
		if !ok {
			price, err = s.prices.GetFreshPrice(ctx, tx, position.Token)
			if err != nil {
				return nil, err
			}
			prices[position.Token] = price
		}

		holdings = append(holdings, Holding{
			Token:                position.Token,
			Supplied:             Underlying(scaledSupply, market.SupplyIndex),
			Debt:                 UnderlyingUp(scaledDebt, market.BorrowIndex),
			Price:                price,
			LTV:                  market.LTV,
			LiquidationThreshold: market.LiquidationThreshold,
		})
	}
	return holdings, nil
}

func (s *MarketService) health(ctx context.Context, tx *gorm.DB, account string, now int64, prices map[string]*big.Int) (*Health, error) {
	holdings, err := s.holdings(ctx, tx, account, now, prices)
	if err != nil {
		return nil, err
	}
	return ComputeHealth(holdings), nil
}

func recordMarketGauges(m *Market) {
	supply, _ := new(big.Float).SetInt(m.TotalSupply).Float64()
	borrow, _ := new(big.Float).SetInt(m.TotalBorrow).Float64()
	metrics.MarketTotalSupply.WithLabelValues(m.Token).Set(supply)
	metrics.MarketTotalBorrow.WithLabelValues(m.Token).Set(borrow)
}

func requireEnabled(cfg *models.TokenConfig, err error) (*models.TokenConfig, error) {
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: token not configured", errs.ErrConfig)
		}
		return nil, err
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: token %s is not enabled", errs.ErrConfig, cfg.Token)
	}
	return cfg, nil
}
