package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_storefront/internal/middleware"
	"github.com/GTDGit/gtd_storefront/internal/service"
	"github.com/GTDGit/gtd_storefront/internal/utils"
)

// ProductHandler serves product price quotes.
type ProductHandler struct {
	catalog  service.ProductCatalog
	sessions *service.SessionService
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(catalog service.ProductCatalog, sessions *service.SessionService) *ProductHandler {
	return &ProductHandler{catalog: catalog, sessions: sessions}
}

// QuoteResponse is the price and availability of a product for the caller.
type QuoteResponse struct {
	ProductID      string             `json:"productId"`
	Size           string             `json:"size,omitempty"`
	Quantity       int                `json:"quantity"`
	Available      *int               `json:"available,omitempty"`
	Sizes          []string           `json:"sizes,omitempty"`
	Quote          service.PriceQuote `json:"quote"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	PriceOnRequest bool               `json:"priceOnRequest,omitempty"`
}

// GetQuote handles GET /v1/products/:id/quote?quantity=&size=
func (h *ProductHandler) GetQuote(c *gin.Context) {
	quantity := 1
	if v := c.Query("quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			utils.Error(c, 400, "VALIDATION_ERROR", "quantity must be a positive integer")
			return
		}
		quantity = n
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	account := middleware.GetAccount(c)

	quantity = service.ClampToMOQ(product, quantity)
	quote := h.sessions.Prices().Resolve(product, account, quantity)

	resp := QuoteResponse{
		ProductID: product.ID,
		Size:      c.Query("size"),
		Quantity:  quantity,
		Sizes:     product.Sizes,
		Quote:     quote,
		Subtotal:  quote.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}

	available, err := h.sessions.Stock().Resolve(product, resp.Size)
	switch {
	case err == nil:
		resp.Available = &available
	case !errors.Is(err, utils.ErrVariantRequired):
		writeError(c, err)
		return
	}

	if quote.Withheld {
		resp.PriceOnRequest = true
		resp.Quote.UnitPrice = decimal.Zero
		resp.Quote.BasePrice = decimal.Zero
		resp.Subtotal = decimal.Zero
	}
	utils.Success(c, 200, "Quote retrieved successfully", resp)
}
