package model

// StockChange is one stock counter moving from Before to After
type StockChange struct {
	ProductID string
	Before    int
	After     int
}

// CatalogChanges is the write set of one catalog transaction. Persisters
// must apply all of it or none of it.
type CatalogChanges struct {
	// Upserts holds created products and products whose fields changed
	Upserts []*Product
	Deletes []string
	// Stock lists counter moves on products that existed before the
	// transaction
	Stock  []StockChange
	Orders []*Order
	Logs   []*StockLog
}

// Empty reports whether there is nothing to write
func (c *CatalogChanges) Empty() bool {
	return c == nil || (len(c.Upserts) == 0 && len(c.Deletes) == 0 &&
		len(c.Stock) == 0 && len(c.Orders) == 0 && len(c.Logs) == 0)
}
