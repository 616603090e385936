package repository

import (
	"context"

	"gorm.io/gorm"

	"private-lending/internal/models"
)

// RelayedActionRepository is the origin-side ciphertext hash index
type RelayedActionRepository interface {
	WithTx(tx *gorm.DB) RelayedActionRepository
	Create(ctx context.Context, action *models.RelayedAction) error
	GetByCiphertextHash(ctx context.Context, ciphertextHash string) (*models.RelayedAction, error)
	GetByActionHandle(ctx context.Context, actionHandle string) (*models.RelayedAction, error)
	ExistsByCiphertextHash(ctx context.Context, ciphertextHash string) (bool, error)
	FindByDeposit(ctx context.Context, depositHandle string) ([]*models.RelayedAction, error)
}

type relayedActionRepository struct {
	db *gorm.DB
}

// NewRelayedActionRepository creates a new RelayedActionRepository instance
func NewRelayedActionRepository(db *gorm.DB) RelayedActionRepository {
	return &relayedActionRepository{db: db}
}

func (r *relayedActionRepository) WithTx(tx *gorm.DB) RelayedActionRepository {
	return &relayedActionRepository{db: tx}
}

func (r *relayedActionRepository) Create(ctx context.Context, action *models.RelayedAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *relayedActionRepository) GetByCiphertextHash(ctx context.Context, ciphertextHash string) (*models.RelayedAction, error) {
	var action models.RelayedAction
	err := r.db.WithContext(ctx).Where("ciphertext_hash = ?", ciphertextHash).First(&action).Error
	if err != nil {
		return nil, notFound(err, "relayed action for ciphertext", ciphertextHash)
	}
	return &action, nil
}

func (r *relayedActionRepository) GetByActionHandle(ctx context.Context, actionHandle string) (*models.RelayedAction, error) {
	var action models.RelayedAction
	err := r.db.WithContext(ctx).Where("action_handle = ?", actionHandle).First(&action).Error
	if err != nil {
		return nil, notFound(err, "relayed action", actionHandle)
	}
	return &action, nil
}

func (r *relayedActionRepository) ExistsByCiphertextHash(ctx context.Context, ciphertextHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RelayedAction{}).Where("ciphertext_hash = ?", ciphertextHash).Count(&count).Error
	return count > 0, err
}

func (r *relayedActionRepository) FindByDeposit(ctx context.Context, depositHandle string) ([]*models.RelayedAction, error) {
	var actions []*models.RelayedAction
	err := r.db.WithContext(ctx).Where("deposit_handle = ?", depositHandle).Order("created_at ASC").Find(&actions).Error
	return actions, err
}
