package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
	"storefront/internal/service/catalog"
	"storefront/internal/service/description"
	"storefront/pkg/utils"
)

func catalogRouter(t *testing.T, store *catalog.Store, gen *description.Generator) *gin.Engine {
	t.Helper()
	h := NewCatalogHandler(store, gen)
	r := gin.New()
	r.GET("/products", h.ListProducts)
	r.GET("/products/:id", h.GetProduct)
	r.POST("/admin/products", h.CreateProduct)
	r.PUT("/admin/products/:id/price", h.UpdatePrice)
	r.PUT("/admin/products/:id/stock", h.UpdateStock)
	r.DELETE("/admin/products/:id", h.DeleteProduct)
	r.POST("/admin/descriptions", h.GenerateDescription)
	return r
}

func decodeProduct(t *testing.T, w *httptest.ResponseRecorder) model.Product {
	t.Helper()
	var p model.Product
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &p))
	return p
}

func TestCatalogHandler_ListProducts(t *testing.T) {
	r := catalogRouter(t, seededStore(t), nil)

	w := doJSON(r, http.MethodGet, "/products", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var products []model.Product
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &products))
	require.Len(t, products, 4)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, "299.99", products[0].Price.StringFixed(2))
	assert.Equal(t, 15, products[0].Stock)
}

func TestCatalogHandler_GetProduct(t *testing.T) {
	r := catalogRouter(t, seededStore(t), nil)

	w := doJSON(r, http.MethodGet, "/products/p2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ergonomic Office Chair", decodeProduct(t, w).Name)

	w = doJSON(r, http.MethodGet, "/products/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int(utils.CodeProductNotFound), decode(t, w).Code)
}

func TestCatalogHandler_CreateProduct(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{
			name:       "created",
			body:       gin.H{"name": "Desk Lamp", "price": "24.50", "stock": 7, "category": "Home"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing name",
			body:       gin.H{"price": "1.00", "stock": 1},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "blank name",
			body:       gin.H{"name": "   ", "price": "1.00", "stock": 1},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative stock",
			body:       gin.H{"name": "Lamp", "price": "1.00", "stock": -1},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative price",
			body:       gin.H{"name": "Lamp", "price": "-1.00", "stock": 1},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad expiry date",
			body:       gin.H{"name": "Milk", "price": "1.00", "stock": 1, "expiry_date": "next week"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore(t)
			r := catalogRouter(t, store, nil)

			w := doJSON(r, http.MethodPost, "/admin/products", tt.body, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantStatus == http.StatusOK {
				p := decodeProduct(t, w)
				assert.NotEmpty(t, p.ID)
				assert.Equal(t, "Desk Lamp", p.Name)
				assert.Equal(t, 7, p.Stock)
				assert.Equal(t, "Home", p.Category)
				assert.Equal(t, 5, store.Len())
				return
			}
			assert.Equal(t, int(utils.CodeInvalidParam), decode(t, w).Code)
			assert.Equal(t, 4, store.Len())
		})
	}
}

func TestCatalogHandler_UpdatePrice(t *testing.T) {
	store := seededStore(t)
	r := catalogRouter(t, store, nil)

	w := doJSON(r, http.MethodPut, "/admin/products/p1/price", gin.H{"price": 249.99}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "249.99", decodeProduct(t, w).Price.StringFixed(2))

	w = doJSON(r, http.MethodPut, "/admin/products/p1/price", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/admin/products/p1/price", gin.H{"price": "-3"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/admin/products/ghost/price", gin.H{"price": "3"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalogHandler_UpdateStock(t *testing.T) {
	store := seededStore(t)
	r := catalogRouter(t, store, nil)

	w := doJSON(r, http.MethodPut, "/admin/products/p4/stock", gin.H{"stock": 0}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeProduct(t, w).Stock)

	w = doJSON(r, http.MethodPut, "/admin/products/p4/stock", gin.H{"stock": -5}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/admin/products/p4/stock", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/admin/products/ghost/stock", gin.H{"stock": 3}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalogHandler_DeleteProduct(t *testing.T) {
	store := seededStore(t)
	r := catalogRouter(t, store, nil)

	w := doJSON(r, http.MethodDelete, "/admin/products/p3", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := store.Get("p3")
	assert.False(t, ok)

	w = doJSON(r, http.MethodDelete, "/admin/products/p3", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalogHandler_GenerateDescription(t *testing.T) {
	t.Run("without generator", func(t *testing.T) {
		r := catalogRouter(t, seededStore(t), nil)

		w := doJSON(r, http.MethodPost, "/admin/descriptions", gin.H{"name": "Desk Lamp", "category": "Home"}, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &body))
		assert.Equal(t, description.MissingKeyText, body["description"])
	})

	t.Run("upstream text", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Light up your desk."}]}}]}`))
		}))
		defer upstream.Close()

		gen, err := description.NewGenerator(description.Config{
			APIKey:   "key",
			Endpoint: upstream.URL,
			Model:    "test-model",
		}, nil, nil)
		require.NoError(t, err)
		defer gen.Close()

		r := catalogRouter(t, seededStore(t), gen)
		w := doJSON(r, http.MethodPost, "/admin/descriptions", gin.H{"name": "Desk Lamp", "category": "Home"}, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &body))
		assert.Equal(t, "Light up your desk.", body["description"])
	})

	t.Run("name required", func(t *testing.T) {
		r := catalogRouter(t, seededStore(t), nil)
		w := doJSON(r, http.MethodPost, "/admin/descriptions", gin.H{"category": "Home"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
