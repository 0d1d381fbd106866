package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatusCompleted is the only status a checkout produces
const OrderStatusCompleted = "COMPLETED"

// Order order model, append-only
type Order struct {
	ID          string          `gorm:"type:varchar(40);primaryKey;comment:order id" json:"id"`
	UserID      string          `gorm:"type:varchar(32);not null;index;comment:user id" json:"user_id"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;comment:total amount" json:"total_amount"`
	Status      string          `gorm:"type:varchar(16);not null;comment:status" json:"status"`
	CreatedAt   time.Time       `gorm:"type:timestamp(3);not null;index;comment:created at" json:"created_at"`

	Lines []OrderLine `gorm:"foreignKey:OrderID;references:ID" json:"lines"`
}

// TableName set name
func (Order) TableName() string {
	return "orders"
}

// IsCompleted check order is completed
func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// ItemCount total quantity across lines
func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// Clone returns a deep copy
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]OrderLine(nil), o.Lines...)
	return &c
}

// OrderLine snapshot of one purchased product
type OrderLine struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement;comment:line id" json:"-"`
	OrderID     string          `gorm:"type:varchar(40);not null;index;comment:order id" json:"-"`
	ProductID   string          `gorm:"type:varchar(32);not null;index;comment:product id" json:"product_id"`
	ProductName string          `gorm:"type:varchar(200);not null;comment:product name snapshot" json:"product_name"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null;comment:unit price snapshot" json:"unit_price"`
	Quantity    int             `gorm:"type:int;not null;comment:quantity" json:"quantity"`
}

// TableName set name
func (OrderLine) TableName() string {
	return "order_lines"
}

// Amount line subtotal
func (l OrderLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartLine one requested product/quantity pair
type CartLine struct {
	ProductID string          `json:"product_id" binding:"required,productid"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
