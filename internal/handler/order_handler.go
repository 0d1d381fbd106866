package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service/catalog"
	"storefront/internal/service/checkout"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// ReplayedHeader marks a response served from an earlier submission
const ReplayedHeader = "Idempotent-Replayed"

// CheckoutRequest a cart submitted for checkout
type CheckoutRequest struct {
	Lines []model.CartLine `json:"lines" binding:"dive"`
}

// OrderHandler checkout and order history handler
type OrderHandler struct {
	engine *checkout.Engine
	store  *catalog.Store
}

// NewOrderHandler creates an order handler
func NewOrderHandler(engine *checkout.Engine, store *catalog.Store) *OrderHandler {
	return &OrderHandler{
		engine: engine,
		store:  store,
	}
}

// Checkout turns the submitted cart into an order. A stock conflict is
// answered with 409 and the result, so the client can reconcile its cart.
func (h *OrderHandler) Checkout(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.AppErrorResponse(c, utils.ErrUnauthorized)
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.FormatBindingError(err))
		return
	}

	key := c.GetHeader(middleware.IdempotencyKeyHeader)
	result, replayed, err := h.engine.CheckoutWithKey(c.Request.Context(), identity.ID, key, req.Lines)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	if replayed {
		c.Header(ReplayedHeader, "true")
	}

	if !result.Success {
		log.FromContext(c.Request.Context()).WithFields(logrus.Fields{
			"failed": result.FailedProductIDs,
		}).Debug("Checkout conflict returned to client")
		utils.ErrorWithData(c, utils.CodeStockConflict, result.Message, result)
		return
	}
	utils.SuccessResponse(c, result)
}

// ListOrders returns the caller's orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.AppErrorResponse(c, utils.ErrUnauthorized)
		return
	}

	orders := h.store.Orders(identity.ID)
	utils.SuccessResponse(c, gin.H{
		"list":  orders,
		"total": len(orders),
	})
}

// ListAllOrders returns every order in the store
func (h *OrderHandler) ListAllOrders(c *gin.Context) {
	orders := h.store.AllOrders()
	utils.SuccessResponse(c, gin.H{
		"list":  orders,
		"total": len(orders),
	})
}
