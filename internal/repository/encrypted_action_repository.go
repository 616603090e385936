package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"private-lending/internal/models"
)

// EncryptedActionRepository stores received actions and their processed snapshots
type EncryptedActionRepository interface {
	WithTx(tx *gorm.DB) EncryptedActionRepository

	Create(ctx context.Context, action *models.EncryptedAction) error
	Get(ctx context.Context, actionHandle string) (*models.EncryptedAction, error)
	Exists(ctx context.Context, actionHandle string) (bool, error)
	FindPending(ctx context.Context, limit int) ([]*models.EncryptedAction, error)
	// MarkProcessed flips processed only if it is still false and reports whether it did.
	MarkProcessed(ctx context.Context, actionHandle string, at time.Time) (bool, error)

	CreatePayload(ctx context.Context, payload *models.ProcessedPayload) error
	GetPayload(ctx context.Context, actionHandle string) (*models.ProcessedPayload, error)
	// CountPayloadsByDeposit counts executed actions of the given types that referenced a deposit.
	CountPayloadsByDeposit(ctx context.Context, depositHandle string, actionTypes []int) (int64, error)
}

type encryptedActionRepository struct {
	db *gorm.DB
}

// NewEncryptedActionRepository creates a new EncryptedActionRepository instance
func NewEncryptedActionRepository(db *gorm.DB) EncryptedActionRepository {
	return &encryptedActionRepository{db: db}
}

func (r *encryptedActionRepository) WithTx(tx *gorm.DB) EncryptedActionRepository {
	return &encryptedActionRepository{db: tx}
}

func (r *encryptedActionRepository) Create(ctx context.Context, action *models.EncryptedAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *encryptedActionRepository) Get(ctx context.Context, actionHandle string) (*models.EncryptedAction, error) {
	var action models.EncryptedAction
	err := r.db.WithContext(ctx).Where("action_handle = ?", actionHandle).First(&action).Error
	if err != nil {
		return nil, notFound(err, "action", actionHandle)
	}
	return &action, nil
}

func (r *encryptedActionRepository) Exists(ctx context.Context, actionHandle string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EncryptedAction{}).Where("action_handle = ?", actionHandle).Count(&count).Error
	return count > 0, err
}

func (r *encryptedActionRepository) FindPending(ctx context.Context, limit int) ([]*models.EncryptedAction, error) {
	var actions []*models.EncryptedAction
	err := r.db.WithContext(ctx).Where("processed = ?", false).Order("created_at ASC").Limit(limit).Find(&actions).Error
	return actions, err
}

func (r *encryptedActionRepository) MarkProcessed(ctx context.Context, actionHandle string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.EncryptedAction{}).
		Where("action_handle = ? AND processed = ?", actionHandle, false).
		Updates(map[string]interface{}{"processed": true, "processed_at": at, "updated_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *encryptedActionRepository) CreatePayload(ctx context.Context, payload *models.ProcessedPayload) error {
	return r.db.WithContext(ctx).Create(payload).Error
}

func (r *encryptedActionRepository) GetPayload(ctx context.Context, actionHandle string) (*models.ProcessedPayload, error) {
	var payload models.ProcessedPayload
	err := r.db.WithContext(ctx).Where("action_handle = ?", actionHandle).First(&payload).Error
	if err != nil {
		return nil, notFound(err, "processed payload", actionHandle)
	}
	return &payload, nil
}

func (r *encryptedActionRepository) CountPayloadsByDeposit(ctx context.Context, depositHandle string, actionTypes []int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProcessedPayload{}).
		Where("deposit_handle = ? AND action_type IN ?", depositHandle, actionTypes).
		Count(&count).Error
	return count, err
}
