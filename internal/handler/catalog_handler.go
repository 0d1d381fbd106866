package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/internal/model"
	"storefront/internal/service/catalog"
	"storefront/internal/service/description"
	"storefront/pkg/utils"
)

// UpdatePriceRequest sets a product price
type UpdatePriceRequest struct {
	Price *decimal.Decimal `json:"price" binding:"required"`
}

// UpdateStockRequest resets a product's stock counter
type UpdateStockRequest struct {
	Stock *int `json:"stock" binding:"required,nonnegative"`
}

// DescriptionRequest asks for generated marketing copy
type DescriptionRequest struct {
	Name     string `json:"name" binding:"required,max=200"`
	Category string `json:"category" binding:"max=64"`
}

// CatalogHandler product catalog handler
type CatalogHandler struct {
	store     *catalog.Store
	generator *description.Generator
}

// NewCatalogHandler creates a catalog handler. generator may be nil, in
// which case description requests get the missing-key text.
func NewCatalogHandler(store *catalog.Store, generator *description.Generator) *CatalogHandler {
	return &CatalogHandler{
		store:     store,
		generator: generator,
	}
}

// ListProducts returns the catalog in display order
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	utils.SuccessResponse(c, h.store.List())
}

// GetProduct returns a single product
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	p, ok := h.store.Get(c.Param("id"))
	if !ok {
		utils.AppErrorResponse(c, utils.ErrProductNotFound)
		return
	}
	utils.SuccessResponse(c, p)
}

// CreateProduct adds a product to the catalog
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var spec model.ProductSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		utils.AppErrorResponse(c, utils.FormatBindingError(err))
		return
	}

	p, err := h.store.Create(c.Request.Context(), spec)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, p)
}

// UpdatePrice changes a product's price
func (h *CatalogHandler) UpdatePrice(c *gin.Context) {
	var req UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.FormatBindingError(err))
		return
	}

	id := c.Param("id")
	found, err := h.store.SetPrice(c.Request.Context(), id, *req.Price)
	h.respondProduct(c, id, found, err)
}

// UpdateStock overwrites a product's stock counter
func (h *CatalogHandler) UpdateStock(c *gin.Context) {
	var req UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.FormatBindingError(err))
		return
	}

	id := c.Param("id")
	found, err := h.store.SetStock(c.Request.Context(), id, *req.Stock)
	h.respondProduct(c, id, found, err)
}

// DeleteProduct removes a product from the catalog
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	id := c.Param("id")
	found, err := h.store.Delete(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	if !found {
		utils.AppErrorResponse(c, utils.ErrProductNotFound)
		return
	}
	utils.SuccessResponse(c, gin.H{"id": id})
}

// GenerateDescription writes marketing copy for a product name. It always
// succeeds; upstream failures turn into a fallback text.
func (h *CatalogHandler) GenerateDescription(c *gin.Context) {
	var req DescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.FormatBindingError(err))
		return
	}

	text := description.MissingKeyText
	if h.generator != nil {
		text = h.generator.Generate(c.Request.Context(), req.Name, req.Category)
	}
	utils.SuccessResponse(c, gin.H{"description": text})
}

func (h *CatalogHandler) respondProduct(c *gin.Context, id string, found bool, err error) {
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	if !found {
		utils.AppErrorResponse(c, utils.ErrProductNotFound)
		return
	}

	p, ok := h.store.Get(id)
	if !ok {
		// deleted between the update and the read
		utils.AppErrorResponse(c, utils.ErrProductNotFound)
		return
	}
	utils.SuccessResponse(c, p)
}
