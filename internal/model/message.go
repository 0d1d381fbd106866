package model

// OrderCompletedMessage published after a checkout commits
type OrderCompletedMessage struct {
	OrderID     string         `json:"order_id"`
	UserID      string         `json:"user_id"`
	TotalAmount string         `json:"total_amount"`
	Lines       []OrderLine    `json:"lines"`
	StockAfter  map[string]int `json:"stock_after"` // product id -> remaining stock
	Timestamp   int64          `json:"timestamp"`
	TraceID     string         `json:"trace_id,omitempty"`
}
