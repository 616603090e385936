package repository

import (
	"context"

	"gorm.io/gorm"

	"private-lending/internal/models"
)

// PriceRepository stores price records and per-token feed addresses
type PriceRepository interface {
	WithTx(tx *gorm.DB) PriceRepository

	GetPrice(ctx context.Context, token string) (*models.PriceRecord, error)
	SavePrice(ctx context.Context, record *models.PriceRecord) error

	// GetSource returns an empty source when none is configured.
	GetSource(ctx context.Context, token string) (*models.PriceSource, error)
	SaveSource(ctx context.Context, source *models.PriceSource) error
}

type priceRepository struct {
	db *gorm.DB
}

// NewPriceRepository creates a new PriceRepository instance
func NewPriceRepository(db *gorm.DB) PriceRepository {
	return &priceRepository{db: db}
}

func (r *priceRepository) WithTx(tx *gorm.DB) PriceRepository {
	return &priceRepository{db: tx}
}

func (r *priceRepository) GetPrice(ctx context.Context, token string) (*models.PriceRecord, error) {
	var record models.PriceRecord
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if err != nil {
		return nil, notFound(err, "price for token", token)
	}
	return &record, nil
}

func (r *priceRepository) SavePrice(ctx context.Context, record *models.PriceRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *priceRepository) GetSource(ctx context.Context, token string) (*models.PriceSource, error) {
	var source models.PriceSource
	err := r.db.WithContext(ctx).Where("token = ?", token).Limit(1).Find(&source).Error
	if err != nil {
		return nil, err
	}
	if source.Token == "" {
		return &models.PriceSource{Token: token}, nil
	}
	return &source, nil
}

func (r *priceRepository) SaveSource(ctx context.Context, source *models.PriceSource) error {
	return r.db.WithContext(ctx).Save(source).Error
}
