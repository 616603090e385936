package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"private-lending/internal/models"
)

// RouterRepository stores the enrolled remote router per domain
type RouterRepository interface {
	Upsert(ctx context.Context, domain uint32, router string) error
	Get(ctx context.Context, domain uint32) (*models.RemoteRouter, error)
	List(ctx context.Context) ([]*models.RemoteRouter, error)
}

type routerRepository struct {
	db *gorm.DB
}

// NewRouterRepository creates a new RouterRepository instance
func NewRouterRepository(db *gorm.DB) RouterRepository {
	return &routerRepository{db: db}
}

func (r *routerRepository) Upsert(ctx context.Context, domain uint32, router string) error {
	now := time.Now()
	var existing models.RemoteRouter
	err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(&models.RemoteRouter{Domain: domain, Router: router, CreatedAt: now, UpdatedAt: now}).Error
	}
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.RemoteRouter{}).Where("domain = ?", domain).
		Updates(map[string]interface{}{"router": router, "updated_at": now}).Error
}

func (r *routerRepository) Get(ctx context.Context, domain uint32) (*models.RemoteRouter, error) {
	var router models.RemoteRouter
	err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&router).Error
	if err != nil {
		return nil, notFound(err, "remote router for domain", domain)
	}
	return &router, nil
}

func (r *routerRepository) List(ctx context.Context) ([]*models.RemoteRouter, error) {
	var routers []*models.RemoteRouter
	err := r.db.WithContext(ctx).Order("domain ASC").Find(&routers).Error
	return routers, err
}
