package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/model"
	"storefront/pkg/log"
	"storefront/pkg/snowflake"
	"storefront/pkg/utils"
)

// Config store configuration
type Config struct {
	// PlaceholderImage is a format string taking the numeric part of the id
	PlaceholderImage string
	DefaultCategory  string
	Persister        Persister
	IDs              *snowflake.IDGenerator
}

// Store is the authoritative product catalog and order log. Every mutation
// goes through Transact, which holds the write lock for its whole duration.
type Store struct {
	mu       sync.RWMutex
	products map[string]*model.Product
	orders   []*model.Order
	position int64

	placeholder     string
	defaultCategory string
	persister       Persister
	ids             *snowflake.IDGenerator
	now             func() time.Time
}

// New creates a catalog store
func New(cfg Config) *Store {
	s := &Store{
		products:        make(map[string]*model.Product),
		placeholder:     cfg.PlaceholderImage,
		defaultCategory: cfg.DefaultCategory,
		persister:       cfg.Persister,
		ids:             cfg.IDs,
		now:             time.Now,
	}
	if s.persister == nil {
		s.persister = NopPersister{}
	}
	if s.ids == nil {
		s.ids, _ = snowflake.NewIDGenerator(1)
	}
	if s.defaultCategory == "" {
		s.defaultCategory = "General"
	}
	return s
}

// NextID returns a fresh time-ordered id with the given prefix
func (s *Store) NextID(prefix string) string {
	return s.ids.Next(prefix)
}

// Transact runs fn against a private write set. When fn returns nil the
// write set is committed to the persister and then applied to memory.
// A persister failure aborts with a storage error and leaves the store
// unchanged.
func (s *Store) Transact(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return utils.NewErrorWithErr(utils.CodeTimeout, "catalog transaction cancelled", err)
	}

	tx := newTx(s)
	if err := fn(tx); err != nil {
		return err
	}

	changes := tx.changes()
	if changes.Empty() {
		return nil
	}
	if err := s.persister.Commit(ctx, changes); err != nil {
		log.FromContext(ctx).WithError(err).Error("Catalog commit failed")
		return utils.NewErrorWithErr(utils.CodeStorageError, "failed to persist catalog changes", err)
	}

	s.apply(tx)
	return nil
}

func (s *Store) apply(tx *Tx) {
	for id := range tx.deleted {
		delete(s.products, id)
	}
	for id, p := range tx.staged {
		s.products[id] = p
	}
	s.orders = append(s.orders, tx.orders...)
	s.position = tx.position
}

// List returns a snapshot of every product in listing order
func (s *Store) List() []*model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.Product, 0, len(s.products))
	for _, p := range s.products {
		list = append(list, p.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Position != list[j].Position {
			return list[i].Position < list[j].Position
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Get returns a copy of one product
func (s *Store) Get(id string) (*model.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Len returns the number of products
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// Create adds a product built from spec
func (s *Store) Create(ctx context.Context, spec model.ProductSpec) (*model.Product, error) {
	name := strings.TrimSpace(spec.Name)
	switch {
	case name == "":
		return nil, utils.NewError(utils.CodeInvalidParam, "product name is required")
	case spec.Price.IsNegative():
		return nil, utils.NewError(utils.CodeInvalidParam, "price must not be negative")
	case spec.Stock < 0:
		return nil, utils.NewError(utils.CodeInvalidParam, "stock must not be negative")
	}

	id := s.ids.Next("p")
	now := s.now()
	p := &model.Product{
		ID:          id,
		Name:        name,
		Description: spec.Description,
		Price:       spec.Price,
		Stock:       spec.Stock,
		Category:    strings.TrimSpace(spec.Category),
		ImageURL:    spec.ImageURL,
		ExpiryDate:  spec.ExpiryDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Category == "" {
		p.Category = s.defaultCategory
	}
	if p.ImageURL == "" && s.placeholder != "" {
		p.ImageURL = fmt.Sprintf(s.placeholder, strings.TrimPrefix(id, "p"))
	}

	var created *model.Product
	err := s.Transact(ctx, func(tx *Tx) error {
		tx.Put(p)
		created, _ = tx.Product(id)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.FromContext(ctx).WithField("product_id", id).Info("Product created")
	return created, nil
}

// SetPrice updates a product's price. It reports false when no such
// product exists.
func (s *Store) SetPrice(ctx context.Context, id string, price decimal.Decimal) (bool, error) {
	if price.IsNegative() {
		return false, utils.NewError(utils.CodeInvalidParam, "price must not be negative")
	}

	var found bool
	err := s.Transact(ctx, func(tx *Tx) error {
		found = tx.SetPrice(id, price)
		return nil
	})
	return found, err
}

// Delete removes a product. Past orders keep their line snapshots.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.Transact(ctx, func(tx *Tx) error {
		found = tx.Delete(id)
		return nil
	})
	if err == nil && found {
		log.FromContext(ctx).WithField("product_id", id).Info("Product deleted")
	}
	return found, err
}

// SetStock resets a product's stock counter
func (s *Store) SetStock(ctx context.Context, id string, stock int) (bool, error) {
	if stock < 0 {
		return false, utils.NewError(utils.CodeInvalidParam, "stock must not be negative")
	}

	var found bool
	err := s.Transact(ctx, func(tx *Tx) error {
		found = tx.SetStock(id, stock, "admin reset")
		return nil
	})
	return found, err
}

// ReserveStock applies every decrement or none of them
func (s *Store) ReserveStock(ctx context.Context, decrements map[string]int) (*Reservation, error) {
	var res *Reservation
	err := s.Transact(ctx, func(tx *Tx) error {
		res = tx.Reserve(decrements, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Orders returns a user's orders in commit order
func (s *Store) Orders(userID string) []*model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			list = append(list, o.Clone())
		}
	}
	return list
}

// AllOrders returns every order in commit order
func (s *Store) AllOrders() []*model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.Order, len(s.orders))
	for i, o := range s.orders {
		list[i] = o.Clone()
	}
	return list
}

// Load replaces the in-memory state with what the persister holds
func (s *Store) Load(ctx context.Context) error {
	products, orders, err := s.persister.Load(ctx)
	if err != nil {
		return utils.NewErrorWithErr(utils.CodeStorageError, "failed to load catalog", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[string]*model.Product, len(products))
	s.position = 0
	for _, p := range products {
		s.products[p.ID] = p.Clone()
		if p.Position > s.position {
			s.position = p.Position
		}
	}
	s.orders = make([]*model.Order, 0, len(orders))
	for _, o := range orders {
		s.orders = append(s.orders, o.Clone())
	}

	log.WithFields(map[string]interface{}{
		"products": len(s.products),
		"orders":   len(s.orders),
	}).Info("Catalog loaded")
	return nil
}
