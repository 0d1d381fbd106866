package repository

import (
	"context"

	"gorm.io/gorm"

	"storefront/internal/model"
)

// StockLogRepository stock log repository interface
type StockLogRepository interface {
	// CreateBatch writes stock logs
	CreateBatch(ctx context.Context, logs []*model.StockLog) error

	// ListByProduct returns the newest logs for one product
	ListByProduct(ctx context.Context, productID string, limit int) ([]*model.StockLog, error)
}

// stockLogRepository stock log repository implementation
type stockLogRepository struct {
	db *gorm.DB
}

// NewStockLogRepository creates a stock log repository
func NewStockLogRepository(db *gorm.DB) StockLogRepository {
	return &stockLogRepository{db: db}
}

// CreateBatch creates stock logs
func (r *stockLogRepository) CreateBatch(ctx context.Context, logs []*model.StockLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&logs).Error
}

// ListByProduct lists stock logs for a product, newest first
func (r *stockLogRepository) ListByProduct(ctx context.Context, productID string, limit int) ([]*model.StockLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var logs []*model.StockLog
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
