package repository

import (
	"context"

	"gorm.io/gorm"

	"private-lending/internal/models"
)

// MarketRepository stores token configurations and account positions
type MarketRepository interface {
	WithTx(tx *gorm.DB) MarketRepository

	GetTokenConfig(ctx context.Context, token string) (*models.TokenConfig, error)
	SaveTokenConfig(ctx context.Context, cfg *models.TokenConfig) error
	ListTokenConfigs(ctx context.Context) ([]*models.TokenConfig, error)

	// GetPosition returns an empty position when none exists.
	GetPosition(ctx context.Context, account, token string) (*models.Position, error)
	SavePosition(ctx context.Context, position *models.Position) error
	FindPositionsByAccount(ctx context.Context, account string) ([]*models.Position, error)
}

type marketRepository struct {
	db *gorm.DB
}

// NewMarketRepository creates a new MarketRepository instance
func NewMarketRepository(db *gorm.DB) MarketRepository {
	return &marketRepository{db: db}
}

func (r *marketRepository) WithTx(tx *gorm.DB) MarketRepository {
	return &marketRepository{db: tx}
}

func (r *marketRepository) GetTokenConfig(ctx context.Context, token string) (*models.TokenConfig, error) {
	var cfg models.TokenConfig
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&cfg).Error
	if err != nil {
		return nil, notFound(err, "token config", token)
	}
	return &cfg, nil
}

func (r *marketRepository) SaveTokenConfig(ctx context.Context, cfg *models.TokenConfig) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}

func (r *marketRepository) ListTokenConfigs(ctx context.Context) ([]*models.TokenConfig, error) {
	var cfgs []*models.TokenConfig
	err := r.db.WithContext(ctx).Order("token ASC").Find(&cfgs).Error
	return cfgs, err
}

func (r *marketRepository) GetPosition(ctx context.Context, account, token string) (*models.Position, error) {
	var position models.Position
	err := r.db.WithContext(ctx).Where("account = ? AND token = ?", account, token).
		Limit(1).Find(&position).Error
	if err != nil {
		return nil, err
	}
	if position.Account == "" {
		return &models.Position{Account: account, Token: token, ScaledSupply: "0", ScaledDebt: "0"}, nil
	}
	return &position, nil
}

func (r *marketRepository) SavePosition(ctx context.Context, position *models.Position) error {
	return r.db.WithContext(ctx).Save(position).Error
}

func (r *marketRepository) FindPositionsByAccount(ctx context.Context, account string) ([]*models.Position, error) {
	var positions []*models.Position
	err := r.db.WithContext(ctx).Where("account = ?", account).Order("token ASC").Find(&positions).Error
	return positions, err
}
