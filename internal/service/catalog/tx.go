package catalog

import (
	"sort"

	"github.com/shopspring/decimal"

	"storefront/internal/model"
)

// FailureReason explains why a line could not be reserved
type FailureReason string

// Failure reasons
const (
	ReasonDeleted           FailureReason = "deleted"
	ReasonInsufficientStock FailureReason = "insufficient_stock"
)

// FailedLine is one product that blocked a reservation
type FailedLine struct {
	ProductID string        `json:"product_id"`
	Reason    FailureReason `json:"reason"`
}

// Reservation is the outcome of Tx.Reserve
type Reservation struct {
	// Failed is sorted by product id and empty on success
	Failed []FailedLine
	// Products holds the pre-decrement snapshot of each reserved product
	Products map[string]*model.Product
}

// OK reports whether every line was reserved
func (r *Reservation) OK() bool {
	return len(r.Failed) == 0
}

// FailedIDs returns the ids of the failed lines
func (r *Reservation) FailedIDs() []string {
	ids := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.ProductID
	}
	return ids
}

// Tx buffers writes against the store. Nothing is visible to other callers
// until the enclosing Transact commits.
type Tx struct {
	s *Store

	position int64
	staged   map[string]*model.Product
	dirty    map[string]bool
	created  []string
	deleted  map[string]bool
	stock    map[string]*model.StockChange
	touched  []string
	orders   []*model.Order
	logs     []*model.StockLog
}

func newTx(s *Store) *Tx {
	return &Tx{
		s:        s,
		position: s.position,
		staged:   make(map[string]*model.Product),
		dirty:    make(map[string]bool),
		deleted:  make(map[string]bool),
		stock:    make(map[string]*model.StockChange),
	}
}

func (tx *Tx) view(id string) *model.Product {
	if tx.deleted[id] {
		return nil
	}
	if p, ok := tx.staged[id]; ok {
		return p
	}
	return tx.s.products[id]
}

// Product returns a copy of the product as this transaction sees it
func (tx *Tx) Product(id string) (*model.Product, bool) {
	p := tx.view(id)
	if p == nil {
		return nil, false
	}
	return p.Clone(), true
}

func (tx *Tx) stage(id string) *model.Product {
	if p, ok := tx.staged[id]; ok {
		return p
	}
	p := tx.view(id)
	if p == nil {
		return nil
	}
	c := p.Clone()
	tx.staged[id] = c
	return c
}

// Put creates or replaces a product
func (tx *Tx) Put(p *model.Product) {
	c := p.Clone()
	if cur, ok := tx.staged[c.ID]; ok {
		c.Position = cur.Position
	} else if cur, ok := tx.s.products[c.ID]; ok && !tx.deleted[c.ID] {
		c.Position = cur.Position
	} else {
		tx.position++
		c.Position = tx.position
		tx.created = append(tx.created, c.ID)
		tx.logs = append(tx.logs, &model.StockLog{
			ProductID:     c.ID,
			OperationType: model.OperationTypeCreate,
			Quantity:      c.Stock,
			AfterStock:    c.Stock,
			CreatedAt:     tx.s.now(),
		})
	}
	delete(tx.deleted, c.ID)
	tx.staged[c.ID] = c
	tx.dirty[c.ID] = true
}

// SetPrice changes a product's unit price. It reports false when the
// product does not exist.
func (tx *Tx) SetPrice(id string, price decimal.Decimal) bool {
	p := tx.stage(id)
	if p == nil {
		return false
	}
	p.Price = price
	tx.dirty[id] = true
	return true
}

// Delete removes a product. It reports whether the product existed.
func (tx *Tx) Delete(id string) bool {
	if tx.view(id) == nil {
		return false
	}
	delete(tx.staged, id)
	delete(tx.dirty, id)
	delete(tx.stock, id)
	tx.deleted[id] = true
	return true
}

// SetStock is the explicit admin reset of a stock counter
func (tx *Tx) SetStock(id string, stock int, remark string) bool {
	p := tx.stage(id)
	if p == nil {
		return false
	}
	tx.moveStock(p, stock, model.OperationTypeReset, nil, remark)
	return true
}

func (tx *Tx) moveStock(p *model.Product, after int, op int8, orderID *string, remark string) {
	before := p.Stock
	if _, existed := tx.s.products[p.ID]; existed {
		sc, ok := tx.stock[p.ID]
		if !ok {
			sc = &model.StockChange{ProductID: p.ID, Before: tx.s.products[p.ID].Stock}
			tx.stock[p.ID] = sc
			tx.touched = append(tx.touched, p.ID)
		}
		sc.After = after
	}
	p.Stock = after

	entry := &model.StockLog{
		ProductID:     p.ID,
		OperationType: op,
		Quantity:      after - before,
		BeforeStock:   before,
		AfterStock:    after,
		OrderID:       orderID,
		CreatedAt:     tx.s.now(),
	}
	if remark != "" {
		r := remark
		entry.Remark = &r
	}
	tx.logs = append(tx.logs, entry)
}

// Reserve validates every decrement against the current stock and stages
// them only if all of them fit. A failed reservation stages nothing.
func (tx *Tx) Reserve(decrements map[string]int, orderID string) *Reservation {
	ids := make([]string, 0, len(decrements))
	for id := range decrements {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := &Reservation{Products: make(map[string]*model.Product, len(ids))}
	for _, id := range ids {
		p := tx.view(id)
		switch {
		case p == nil:
			res.Failed = append(res.Failed, FailedLine{ProductID: id, Reason: ReasonDeleted})
		case p.Stock < decrements[id]:
			res.Failed = append(res.Failed, FailedLine{ProductID: id, Reason: ReasonInsufficientStock})
		default:
			res.Products[id] = p.Clone()
		}
	}
	if !res.OK() {
		res.Products = nil
		return res
	}

	var ref *string
	if orderID != "" {
		ref = &orderID
	}
	for _, id := range ids {
		tx.moveStock(tx.stage(id), tx.view(id).Stock-decrements[id], model.OperationTypeDeduct, ref, "")
	}
	return res
}

// AppendOrder records an order
func (tx *Tx) AppendOrder(o *model.Order) {
	tx.orders = append(tx.orders, o.Clone())
}

func (tx *Tx) changes() *model.CatalogChanges {
	ch := &model.CatalogChanges{}

	created := make(map[string]bool, len(tx.created))
	for _, id := range tx.created {
		created[id] = true
		if p, ok := tx.staged[id]; ok {
			ch.Upserts = append(ch.Upserts, p.Clone())
		}
	}
	for _, id := range tx.sortedDirty() {
		if created[id] {
			continue
		}
		ch.Upserts = append(ch.Upserts, tx.staged[id].Clone())
	}

	for id := range tx.deleted {
		if _, existed := tx.s.products[id]; existed {
			ch.Deletes = append(ch.Deletes, id)
		}
	}
	sort.Strings(ch.Deletes)

	for _, id := range tx.touched {
		if sc, ok := tx.stock[id]; ok && sc.Before != sc.After {
			ch.Stock = append(ch.Stock, *sc)
		}
	}

	for _, o := range tx.orders {
		ch.Orders = append(ch.Orders, o.Clone())
	}
	for _, l := range tx.logs {
		if tx.deleted[l.ProductID] {
			continue
		}
		c := *l
		ch.Logs = append(ch.Logs, &c)
	}
	return ch
}

func (tx *Tx) sortedDirty() []string {
	ids := make([]string, 0, len(tx.dirty))
	for id := range tx.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
