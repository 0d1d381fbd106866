package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/model"
)

// CatalogPersister writes catalog change sets to MySQL, one gorm
// transaction per change set.
type CatalogPersister struct {
	db *gorm.DB
}

// NewCatalogPersister creates a catalog persister
func NewCatalogPersister(db *gorm.DB) *CatalogPersister {
	return &CatalogPersister{db: db}
}

// Load reads the stored products and orders
func (p *CatalogPersister) Load(ctx context.Context) ([]*model.Product, []*model.Order, error) {
	products, err := NewProductRepository(p.db).List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load products: %w", err)
	}

	orders, err := NewOrderRepository(p.db).ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load orders: %w", err)
	}

	return products, orders, nil
}

// Commit applies the change set atomically
func (p *CatalogPersister) Commit(ctx context.Context, changes *model.CatalogChanges) error {
	if changes.Empty() {
		return nil
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := NewProductRepository(tx)

		for _, sc := range changes.Stock {
			if err := products.CompareAndSetStock(ctx, sc.ProductID, sc.Before, sc.After); err != nil {
				return fmt.Errorf("stock %s %d->%d: %w", sc.ProductID, sc.Before, sc.After, err)
			}
		}

		for _, product := range changes.Upserts {
			if err := products.Upsert(ctx, product); err != nil {
				return fmt.Errorf("upsert product %s: %w", product.ID, err)
			}
		}

		for _, id := range changes.Deletes {
			if err := products.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete product %s: %w", id, err)
			}
		}

		for _, order := range changes.Orders {
			if err := insertOrder(tx, order); err != nil {
				return fmt.Errorf("create order %s: %w", order.ID, err)
			}
		}

		if err := NewStockLogRepository(tx).CreateBatch(ctx, changes.Logs); err != nil {
			return fmt.Errorf("write stock logs: %w", err)
		}

		return nil
	})
}
