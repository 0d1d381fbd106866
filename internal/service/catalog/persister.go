package catalog

import (
	"context"

	"storefront/internal/model"
)

// Persister durably records catalog change sets. Commit must apply the
// whole change set or none of it.
type Persister interface {
	Load(ctx context.Context) ([]*model.Product, []*model.Order, error)
	Commit(ctx context.Context, changes *model.CatalogChanges) error
}

// NopPersister keeps the catalog in memory only
type NopPersister struct{}

// Load returns an empty catalog
func (NopPersister) Load(context.Context) ([]*model.Product, []*model.Order, error) {
	return nil, nil, nil
}

// Commit accepts every change set
func (NopPersister) Commit(context.Context, *model.CatalogChanges) error {
	return nil
}
