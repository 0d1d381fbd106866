package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/pkg/log"
	"storefront/pkg/queue"
)

// LowStockNotifier is told about products left at or below the threshold
type LowStockNotifier interface {
	NotifyLowStock(ctx context.Context, productID string, stock int)
}

// LogNotifier writes low stock warnings to the log
type LogNotifier struct{}

// NotifyLowStock logs a warning
func (LogNotifier) NotifyLowStock(ctx context.Context, productID string, stock int) {
	log.FromContext(ctx).WithFields(map[string]interface{}{
		"product_id": productID,
		"stock":      stock,
	}).Warn("Product stock is low")
}

// OrderConsumer order-completed message consumer
type OrderConsumer struct {
	queue     queue.Queue
	topic     string
	threshold int
	notifier  LowStockNotifier
	metrics   *monitor.Metrics
	tracer    *monitor.Tracer

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewOrderConsumer creates an order consumer. notifier defaults to
// LogNotifier.
func NewOrderConsumer(q queue.Queue, topic string, threshold int, notifier LowStockNotifier, metrics *monitor.Metrics, tracer *monitor.Tracer) *OrderConsumer {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &OrderConsumer{
		queue:     q,
		topic:     topic,
		threshold: threshold,
		notifier:  notifier,
		metrics:   metrics,
		tracer:    tracer,
	}
}

// Start subscribes to the order topic
func (c *OrderConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := c.queue.Subscribe(ctx, c.topic, c.handle); err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}
	c.cancel = cancel

	log.WithField("topic", c.topic).Info("Order consumer started")
	return nil
}

// Stop stops consuming. Messages already buffered are left in the queue.
func (c *OrderConsumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		log.Info("Order consumer stopped")
	}
}

func (c *OrderConsumer) handle(ctx context.Context, topic string, data []byte) error {
	ctx, span := c.tracer.StartQueueSpan(ctx, "receive", topic)
	defer span.End()

	var msg model.OrderCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.metrics.RecordQueueMessage(topic, "receive", "invalid")
		c.tracer.RecordError(span, err)
		return fmt.Errorf("invalid order message: %w", err)
	}
	c.metrics.RecordQueueMessage(topic, "receive", "ok")

	ctx = log.NewContext(ctx, map[string]interface{}{
		"order_id": msg.OrderID,
		"trace_id": msg.TraceID,
	})
	log.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id": msg.UserID,
		"total":   msg.TotalAmount,
		"lines":   len(msg.Lines),
	}).Info("Order completed")

	ids := make([]string, 0, len(msg.StockAfter))
	for id := range msg.StockAfter {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		stock := msg.StockAfter[id]
		c.metrics.SetProductStock(id, stock)
		p := model.Product{ID: id, Stock: stock}
		if p.IsLowStock(c.threshold) {
			c.metrics.RecordLowStock(id)
			c.notifier.NotifyLowStock(ctx, id, stock)
		}
	}
	return nil
}
