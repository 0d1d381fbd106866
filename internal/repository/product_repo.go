package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/model"
)

// ErrStaleStock is returned when a stored stock counter no longer holds the
// value a compare-and-set expected
var ErrStaleStock = errors.New("stock changed concurrently")

// ProductRepository product repository interface
type ProductRepository interface {
	// List all products in listing order
	List(ctx context.Context) ([]*model.Product, error)

	// Upsert inserts the product or overwrites every column
	Upsert(ctx context.Context, product *model.Product) error

	// Delete product by ID
	Delete(ctx context.Context, id string) error

	// CompareAndSetStock sets stock to after only while it still equals before
	CompareAndSetStock(ctx context.Context, id string, before, after int) error
}

// productRepository product repository implementation
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a product repository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// List lists products ordered by position
func (r *productRepository) List(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Order("position ASC").
		Order("id ASC").
		Find(&products).Error
	return products, err
}

// Upsert inserts or fully updates a product
func (r *productRepository) Upsert(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(product).Error
}

// Delete deletes a product
func (r *productRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.Product{}).Error
}

// CompareAndSetStock updates stock (atomic operation)
func (r *productRepository) CompareAndSetStock(ctx context.Context, id string, before, after int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock = ?", id, before).
		Update("stock", after)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrStaleStock
	}

	return nil
}
