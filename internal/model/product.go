package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product catalog item
type Product struct {
	ID          string          `gorm:"type:varchar(32);primaryKey;comment:product id" json:"id"`
	Name        string          `gorm:"type:varchar(200);not null;comment:product name" json:"name"`
	Description string          `gorm:"type:text;comment:description" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null;comment:unit price" json:"price"`
	Stock       int             `gorm:"type:int;not null;default:0;comment:stock count" json:"stock"`
	Category    string          `gorm:"type:varchar(64);not null;index;comment:category" json:"category"`
	ImageURL    string          `gorm:"type:varchar(255);comment:image url" json:"image_url"`
	ExpiryDate  *string         `gorm:"type:varchar(10);comment:expiry date (YYYY-MM-DD)" json:"expiry_date,omitempty"`
	Position    int64           `gorm:"type:bigint;not null;default:0;index;comment:listing order" json:"-"`
	CreatedAt   time.Time       `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:created at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP;comment:updated at" json:"updated_at"`
}

// TableName set name
func (Product) TableName() string {
	return "products"
}

// Clone returns a copy that shares no mutable state with p
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.ExpiryDate != nil {
		d := *p.ExpiryDate
		c.ExpiryDate = &d
	}
	return &c
}

// InStock check product has any stock
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// IsLowStock check stock is at or below threshold
func (p *Product) IsLowStock(threshold int) bool {
	return p.Stock <= threshold
}

// ProductSpec fields accepted when creating a product
type ProductSpec struct {
	Name        string          `json:"name" binding:"required,max=200"`
	Description string          `json:"description" binding:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"nonnegative"`
	Category    string          `json:"category" binding:"max=64"`
	ImageURL    string          `json:"image_url" binding:"omitempty,url,max=255"`
	ExpiryDate  *string         `json:"expiry_date" binding:"omitempty,isodate"`
}
