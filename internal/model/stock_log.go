package model

import (
	"time"
)

// StockLog stock change audit record
type StockLog struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement;comment:log id" json:"id"`
	ProductID     string    `gorm:"type:varchar(32);not null;index;comment:product id" json:"product_id"`
	OperationType int8      `gorm:"type:tinyint;not null;comment:1-deduct 2-reset 3-create" json:"operation_type"`
	Quantity      int       `gorm:"type:int;not null;comment:signed change" json:"quantity"`
	BeforeStock   int       `gorm:"type:int;not null;comment:stock before" json:"before_stock"`
	AfterStock    int       `gorm:"type:int;not null;comment:stock after" json:"after_stock"`
	OrderID       *string   `gorm:"type:varchar(40);index;comment:order id" json:"order_id,omitempty"`
	Remark        *string   `gorm:"type:varchar(255);comment:remark" json:"remark,omitempty"`
	CreatedAt     time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index;comment:created at" json:"created_at"`
}

// TableName set name
func (StockLog) TableName() string {
	return "stock_logs"
}

// OperationType operation type const
const (
	OperationTypeDeduct = 1
	OperationTypeReset  = 2
	OperationTypeCreate = 3
)

// IsDeduct check if operation is deduct
func (sl *StockLog) IsDeduct() bool {
	return sl.OperationType == OperationTypeDeduct
}

// IsReset check if operation is an admin reset
func (sl *StockLog) IsReset() bool {
	return sl.OperationType == OperationTypeReset
}
