package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/internal/service/catalog"
	"storefront/pkg/log"
	"storefront/pkg/queue"
	"storefront/pkg/utils"
)

// Result messages
const (
	MessageSuccess  = "Payment successful! Order placed."
	MessageConflict = "Some items are no longer available in the requested quantity."
)

const publishTimeout = 2 * time.Second

// Result checkout outcome. A failed result carries every product that
// blocked the transaction.
type Result struct {
	Success          bool                 `json:"success"`
	Message          string               `json:"message"`
	OrderID          string               `json:"order_id,omitempty"`
	Order            *model.Order         `json:"order,omitempty"`
	FailedProductIDs []string             `json:"failed_product_ids,omitempty"`
	FailedLines      []catalog.FailedLine `json:"failed_lines,omitempty"`
}

// Config engine configuration
type Config struct {
	// Timeout bounds one checkout, including Latency. Zero means unbounded.
	Timeout time.Duration
	Latency time.Duration
	Topic   string
}

// Engine turns a cart into an order with all-or-nothing stock reservation
type Engine struct {
	store   *catalog.Store
	queue   queue.Queue
	replay  *ReplayGuard
	metrics *monitor.Metrics
	tracer  *monitor.Tracer
	cfg     Config
}

// NewEngine creates a checkout engine. queue, replay, metrics and tracer
// are optional.
func NewEngine(store *catalog.Store, q queue.Queue, replay *ReplayGuard, metrics *monitor.Metrics, tracer *monitor.Tracer, cfg Config) *Engine {
	if cfg.Topic == "" {
		cfg.Topic = "orders.completed"
	}
	return &Engine{
		store:   store,
		queue:   q,
		replay:  replay,
		metrics: metrics,
		tracer:  tracer,
		cfg:     cfg,
	}
}

// CheckoutWithKey is Checkout with an optional idempotency key. A repeated
// key returns the first result without touching the catalog, and the
// boolean reports that it was replayed. An empty key is never deduplicated.
func (e *Engine) CheckoutWithKey(ctx context.Context, userID, key string, lines []model.CartLine) (*Result, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || e.replay == nil {
		res, err := e.Checkout(ctx, userID, lines)
		return res, false, err
	}

	res, replayed, err := e.replay.Do(userID, key, func() (*Result, error) {
		return e.Checkout(ctx, userID, lines)
	})
	if replayed {
		e.metrics.RecordCheckout(monitor.OutcomeReplayed, 0)
		log.FromContext(ctx).WithField("user_id", userID).Info("Checkout replayed from idempotency key")
	}
	return res, replayed, err
}

// Checkout validates every line against the live catalog and either
// commits all of them as one order or commits nothing
func (e *Engine) Checkout(ctx context.Context, userID string, lines []model.CartLine) (*Result, error) {
	start := time.Now()

	ids, quantities, err := validate(userID, lines)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.StartCheckoutSpan(ctx, userID, len(lines))
	defer span.End()

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	logger := log.FromContext(ctx).WithField("user_id", userID)

	if err := utils.SleepContext(ctx, e.cfg.Latency); err != nil {
		e.metrics.RecordCheckout(monitor.OutcomeTimeout, time.Since(start))
		return nil, utils.NewErrorWithErr(utils.CodeTimeout, "checkout timed out", err)
	}

	orderID := e.store.NextID("ord_")
	var (
		reservation *catalog.Reservation
		order       *model.Order
		stockAfter  map[string]int
	)
	err = e.store.Transact(ctx, func(tx *catalog.Tx) error {
		reservation = tx.Reserve(quantities, orderID)
		if !reservation.OK() {
			return nil
		}

		order, stockAfter = buildOrder(orderID, userID, lines, ids, quantities, reservation)
		order.CreatedAt = time.Now()
		tx.AppendOrder(order)
		return nil
	})
	if err != nil {
		outcome := monitor.OutcomeError
		if errors.Is(err, utils.ErrTimeout) {
			outcome = monitor.OutcomeTimeout
		}
		e.metrics.RecordCheckout(outcome, time.Since(start))
		e.tracer.RecordError(span, err)
		logger.WithError(err).Error("Checkout aborted")
		return nil, err
	}

	if !reservation.OK() {
		e.metrics.RecordCheckout(monitor.OutcomeConflict, time.Since(start))
		logger.WithField("failed", reservation.FailedIDs()).Info("Checkout rejected, stock conflict")
		return &Result{
			Success:          false,
			Message:          MessageConflict,
			FailedProductIDs: reservation.FailedIDs(),
			FailedLines:      reservation.Failed,
		}, nil
	}

	e.metrics.RecordCheckout(monitor.OutcomeSuccess, time.Since(start))
	for id, qty := range quantities {
		e.metrics.RecordStockReserved(id, qty)
		e.metrics.SetProductStock(id, stockAfter[id])
	}
	logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"total":    order.TotalAmount.StringFixed(2),
		"items":    order.ItemCount(),
	}).Info("Order placed")

	e.publish(ctx, order, stockAfter)

	return &Result{
		Success: true,
		Message: MessageSuccess,
		OrderID: order.ID,
		Order:   order,
	}, nil
}

// validate aggregates duplicate lines and returns product ids in first
// seen order with their total quantities
func validate(userID string, lines []model.CartLine) ([]string, map[string]int, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, utils.NewError(utils.CodeInvalidParam, "user id is required")
	}
	if len(lines) == 0 {
		return nil, nil, utils.NewError(utils.CodeInvalidParam, "cart is empty")
	}

	ids := make([]string, 0, len(lines))
	quantities := make(map[string]int, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return nil, nil, utils.NewError(utils.CodeInvalidParam, "product id is required")
		}
		if l.Quantity < 1 {
			return nil, nil, utils.NewError(utils.CodeInvalidParam, "quantity must be at least 1")
		}
		if l.UnitPrice.IsNegative() {
			return nil, nil, utils.NewError(utils.CodeInvalidParam, "unit price must not be negative")
		}
		if _, seen := quantities[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		quantities[l.ProductID] += l.Quantity
	}
	return ids, quantities, nil
}

// buildOrder prices every line at the snapshot the cart carried. A line
// without a snapshot takes the price read inside the transaction. Lines
// for the same product at the same price are merged.
func buildOrder(orderID, userID string, lines []model.CartLine, ids []string, quantities map[string]int, r *catalog.Reservation) (*model.Order, map[string]int) {
	order := &model.Order{
		ID:     orderID,
		UserID: userID,
		Status: model.OrderStatusCompleted,
		Lines:  make([]model.OrderLine, 0, len(lines)),
	}

	for _, l := range lines {
		p := r.Products[l.ProductID]
		price := l.UnitPrice
		if price.IsZero() {
			price = p.Price
		}

		merged := false
		for i := range order.Lines {
			if order.Lines[i].ProductID == l.ProductID && order.Lines[i].UnitPrice.Equal(price) {
				order.Lines[i].Quantity += l.Quantity
				merged = true
				break
			}
		}
		if !merged {
			order.Lines = append(order.Lines, model.OrderLine{
				OrderID:     orderID,
				ProductID:   l.ProductID,
				ProductName: p.Name,
				UnitPrice:   price,
				Quantity:    l.Quantity,
			})
		}
	}

	total := decimal.Zero
	for _, line := range order.Lines {
		total = total.Add(line.Amount())
	}
	order.TotalAmount = total

	stockAfter := make(map[string]int, len(ids))
	for _, id := range ids {
		stockAfter[id] = r.Products[id].Stock - quantities[id]
	}
	return order, stockAfter
}

func (e *Engine) publish(ctx context.Context, order *model.Order, stockAfter map[string]int) {
	if e.queue == nil {
		return
	}

	msg := model.OrderCompletedMessage{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Lines:       order.Lines,
		StockAfter:  stockAfter,
		Timestamp:   order.CreatedAt.UnixMilli(),
		TraceID:     monitor.TraceID(ctx),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Error("Failed to marshal order event")
		return
	}

	// the order is committed, so publishing must not inherit the request deadline
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.queue.Publish(pubCtx, e.cfg.Topic, data); err != nil {
		e.metrics.RecordQueueMessage(e.cfg.Topic, "publish", "error")
		log.FromContext(ctx).WithError(err).WithField("order_id", order.ID).Warn("Failed to publish order event")
		return
	}
	e.metrics.RecordQueueMessage(e.cfg.Topic, "publish", "ok")
}
