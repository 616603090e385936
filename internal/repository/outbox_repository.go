package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"private-lending/internal/models"
)

// OutboxRepository persists outbound transport messages
type OutboxRepository interface {
	WithTx(tx *gorm.DB) OutboxRepository
	Create(ctx context.Context, msg *models.OutboundMessage) error
	Get(ctx context.Context, id string) (*models.OutboundMessage, error)
	FindPending(ctx context.Context, limit int) ([]*models.OutboundMessage, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id string, lastError string, failed bool) error
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new OutboxRepository instance
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) WithTx(tx *gorm.DB) OutboxRepository {
	return &outboxRepository{db: tx}
}

func (r *outboxRepository) Create(ctx context.Context, msg *models.OutboundMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *outboxRepository) Get(ctx context.Context, id string) (*models.OutboundMessage, error) {
	var msg models.OutboundMessage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		return nil, notFound(err, "outbound message", id)
	}
	return &msg, nil
}

func (r *outboxRepository) FindPending(ctx context.Context, limit int) ([]*models.OutboundMessage, error) {
	var msgs []*models.OutboundMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", models.OutboundStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *outboxRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.OutboundMessage{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.OutboundStatusDelivered,
			"delivered_at": at,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   "",
		}).Error
}

func (r *outboxRepository) RecordFailure(ctx context.Context, id string, lastError string, failed bool) error {
	updates := map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": lastError,
	}
	if failed {
		updates["status"] = models.OutboundStatusFailed
	}
	return r.db.WithContext(ctx).Model(&models.OutboundMessage{}).Where("id = ?", id).Updates(updates).Error
}

func (r *outboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OutboundMessage{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
