package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront/internal/model"
	"storefront/pkg/log"
)

func seedProducts() []*model.Product {
	expiry := "2025-12-31"
	return []*model.Product{
		{
			ID:          "p1",
			Name:        "Wireless Noise Cancelling Headphones",
			Description: "Premium sound quality with active noise cancellation and 30h battery life.",
			Price:       decimal.RequireFromString("299.99"),
			Stock:       15,
			Category:    "Electronics",
			ImageURL:    "https://picsum.photos/400/400?random=1",
		},
		{
			ID:          "p2",
			Name:        "Ergonomic Office Chair",
			Description: "Lumbar support and breathable mesh for long working hours.",
			Price:       decimal.RequireFromString("199.50"),
			Stock:       5,
			Category:    "Furniture",
			ImageURL:    "https://picsum.photos/400/400?random=2",
		},
		{
			ID:          "p3",
			Name:        "Organic Green Tea (50 bags)",
			Description: "Sourced from high-altitude gardens. Rich in antioxidants.",
			Price:       decimal.RequireFromString("12.99"),
			Stock:       100,
			Category:    "Grocery",
			ImageURL:    "https://picsum.photos/400/400?random=3",
			ExpiryDate:  &expiry,
		},
		{
			ID:          "p4",
			Name:        "Smart Fitness Watch",
			Description: "Track your heart rate, steps, and sleep. Waterproof.",
			Price:       decimal.RequireFromString("89.00"),
			Stock:       2,
			Category:    "Electronics",
			ImageURL:    "https://picsum.photos/400/400?random=4",
		},
	}
}

// Seed fills an empty catalog with the demo products. It is a no-op when
// the catalog already has products.
func (s *Store) Seed(ctx context.Context) error {
	if s.Len() > 0 {
		return nil
	}

	err := s.Transact(ctx, func(tx *Tx) error {
		if len(tx.s.products) > 0 {
			return nil
		}
		now := s.now()
		for _, p := range seedProducts() {
			p.CreatedAt, p.UpdatedAt = now, now
			tx.Put(p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("Catalog seeded with demo products")
	return nil
}
