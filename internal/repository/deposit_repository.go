package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	"private-lending/internal/models"
)

// DepositRepository defines the interface for origin ledger data access
type DepositRepository interface {
	WithTx(tx *gorm.DB) DepositRepository

	Create(ctx context.Context, deposit *models.Deposit) error
	GetByHandle(ctx context.Context, handle string) (*models.Deposit, error)
	FindByDepositor(ctx context.Context, depositor string, page, limit int) ([]*models.Deposit, int64, error)
	NextNonce(ctx context.Context) (uint64, error)
	// MarkReleased flips released only if it is still false and reports whether it did.
	MarkReleased(ctx context.Context, handle, recipient, amount string, at time.Time) (bool, error)

	CreateTransfer(ctx context.Context, transfer *models.CustodyTransfer) error
	FindTransferByDedupKey(ctx context.Context, key string) (*models.CustodyTransfer, error)
	FindTransfersByDeposit(ctx context.Context, handle string) ([]*models.CustodyTransfer, error)

	GetBalance(ctx context.Context, token string) (string, error)
	SaveBalance(ctx context.Context, token, balance string) error
}

// depositRepository implements DepositRepository
type depositRepository struct {
	db *gorm.DB
}

// NewDepositRepository creates a new DepositRepository instance
func NewDepositRepository(db *gorm.DB) DepositRepository {
	return &depositRepository{db: db}
}

func (r *depositRepository) WithTx(tx *gorm.DB) DepositRepository {
	return &depositRepository{db: tx}
}

func (r *depositRepository) Create(ctx context.Context, deposit *models.Deposit) error {
	return r.db.WithContext(ctx).Create(deposit).Error
}

func (r *depositRepository) GetByHandle(ctx context.Context, handle string) (*models.Deposit, error) {
	var deposit models.Deposit
	err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&deposit).Error
	if err != nil {
		return nil, notFound(err, "deposit", handle)
	}
	return &deposit, nil
}

func (r *depositRepository) FindByDepositor(ctx context.Context, depositor string, page, limit int) ([]*models.Deposit, int64, error) {
	var deposits []*models.Deposit
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Deposit{}).Where("depositor = ?", depositor)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("nonce DESC").Find(&deposits).Error
	if err != nil {
		return nil, 0, err
	}
	return deposits, total, nil
}

func (r *depositRepository) NextNonce(ctx context.Context) (uint64, error) {
	var max sql.NullInt64
	err := r.db.WithContext(ctx).Model(&models.Deposit{}).Select("MAX(nonce)").Row().Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return uint64(max.Int64) + 1, nil
}

func (r *depositRepository) MarkReleased(ctx context.Context, handle, recipient, amount string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Deposit{}).
		Where("handle = ? AND released = ?", handle, false).
		Updates(map[string]interface{}{
			"released":        true,
			"released_to":     recipient,
			"released_amount": amount,
			"released_at":     at,
			"updated_at":      at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *depositRepository) CreateTransfer(ctx context.Context, transfer *models.CustodyTransfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

func (r *depositRepository) FindTransferByDedupKey(ctx context.Context, key string) (*models.CustodyTransfer, error) {
	var transfer models.CustodyTransfer
	err := r.db.WithContext(ctx).Where("dedup_key = ?", key).First(&transfer).Error
	if err != nil {
		return nil, notFound(err, "transfer", key)
	}
	return &transfer, nil
}

func (r *depositRepository) FindTransfersByDeposit(ctx context.Context, handle string) ([]*models.CustodyTransfer, error) {
	var transfers []*models.CustodyTransfer
	err := r.db.WithContext(ctx).Where("deposit_handle = ?", handle).Order("id ASC").Find(&transfers).Error
	return transfers, err
}

func (r *depositRepository) GetBalance(ctx context.Context, token string) (string, error) {
	var balance models.CustodyBalance
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return balance.Balance, nil
}

func (r *depositRepository) SaveBalance(ctx context.Context, token, balance string) error {
	return r.db.WithContext(ctx).Save(&models.CustodyBalance{Token: token, Balance: balance, UpdatedAt: time.Now()}).Error
}
