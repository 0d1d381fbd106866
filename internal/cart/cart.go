// Package cart stages a shopper's selection on the client side. Quantities
// are capped at the last stock figure the shopper saw, which is only a
// hint: checkout re-checks everything against the live catalog.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"storefront/internal/model"
	"storefront/internal/service/checkout"
)

// Item one staged product
type Item struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	ObservedStock int             `json:"observed_stock"`
}

// Cart is safe for concurrent use
type Cart struct {
	mu    sync.Mutex
	items []*Item
}

// New creates an empty cart
func New() *Cart {
	return &Cart{}
}

func (c *Cart) find(id string) (int, *Item) {
	for i, it := range c.items {
		if it.ProductID == id {
			return i, it
		}
	}
	return -1, nil
}

// Add puts one more unit of p in the cart. It reports false when p is out
// of stock or the cart already holds all observed stock.
func (c *Cart) Add(p *model.Product) bool {
	if p == nil || !p.InStock() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, it := c.find(p.ID)
	if it == nil {
		c.items = append(c.items, &Item{
			ProductID:     p.ID,
			Name:          p.Name,
			UnitPrice:     p.Price,
			Quantity:      1,
			ObservedStock: p.Stock,
		})
		return true
	}

	it.ObservedStock = p.Stock
	it.UnitPrice = p.Price
	if it.Quantity >= it.ObservedStock {
		it.Quantity = it.ObservedStock
		return false
	}
	it.Quantity++
	return true
}

// SetQuantity changes the quantity of a staged product. Values below 1 are
// ignored and values above the observed stock are capped.
func (c *Cart) SetQuantity(id string, q int) {
	if q < 1 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, it := c.find(id); it != nil {
		if q > it.ObservedStock {
			q = it.ObservedStock
		}
		it.Quantity = q
	}
}

// Remove drops a product from the cart
func (c *Cart) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i, _ := c.find(id); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

// Reconcile applies a checkout result: a success empties the cart and a
// failure drops every product that blocked it
func (c *Cart) Reconcile(res *checkout.Result) {
	if res == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if res.Success {
		c.items = nil
		return
	}

	failed := make(map[string]bool, len(res.FailedProductIDs))
	for _, id := range res.FailedProductIDs {
		failed[id] = true
	}
	kept := c.items[:0]
	for _, it := range c.items {
		if !failed[it.ProductID] {
			kept = append(kept, it)
		}
	}
	c.items = kept
}

// Items returns copies of the staged items in insertion order
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	for i, it := range c.items {
		out[i] = *it
	}
	return out
}

// Lines returns the checkout lines for the cart
func (c *Cart) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]model.CartLine, len(c.items))
	for i, it := range c.items {
		lines[i] = model.CartLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return lines
}

// Total sums price times quantity
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Count sums quantities
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}
