package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/model"
)

// OrderRepository order repository interface
type OrderRepository interface {
	// Create order with its lines
	Create(ctx context.Context, order *model.Order) error

	// ListAll lists every order in commit order
	ListAll(ctx context.Context) ([]*model.Order, error)

	// ListUserOrders lists one user's orders in commit order
	ListUserOrders(ctx context.Context, userID string) ([]*model.Order, error)
}

// orderRepository order repository implementation
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create creates an order and its lines
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertOrder(tx, order)
	})
}

// insertOrder writes order and lines on tx, which must already be a
// transaction
func insertOrder(tx *gorm.DB, order *model.Order) error {
	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}

	if len(order.Lines) > 0 {
		for i := range order.Lines {
			order.Lines[i].OrderID = order.ID
		}
		if err := tx.Create(&order.Lines).Error; err != nil {
			return err
		}
	}

	return nil
}

// ListAll lists all orders
func (r *orderRepository) ListAll(ctx context.Context) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

// ListUserOrders lists user orders
func (r *orderRepository) ListUserOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}
