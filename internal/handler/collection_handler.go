package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_storefront/internal/middleware"
	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/service"
	"github.com/GTDGit/gtd_storefront/internal/utils"
)

// CollectionHandler serves the cart, wishlist and RFQ endpoints. Each route
// group is bound to one collection kind.
type CollectionHandler struct {
	sessions *service.SessionService
}

// NewCollectionHandler constructs a CollectionHandler.
func NewCollectionHandler(sessions *service.SessionService) *CollectionHandler {
	return &CollectionHandler{sessions: sessions}
}

// AddRequest is the body of POST /v1/{kind}.
type AddRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  *int   `json:"quantity"`
}

// UpdateRequest is the body of PUT /v1/{kind}/:productId.
type UpdateRequest struct {
	Size     string `json:"size"`
	Quantity *int   `json:"quantity"`
}

// Register mounts the endpoints of kind on group.
func (h *CollectionHandler) Register(group *gin.RouterGroup, kind models.CollectionKind) {
	group.GET("", h.get(kind))
	group.POST("", h.add(kind))
	group.DELETE("", h.clear(kind))
	group.POST("/sync", h.sync(kind))
	group.PUT("/:productId", h.update(kind))
	group.DELETE("/:productId", h.remove(kind))
}

// collection resolves the caller's collection of kind. A session bound to an
// account is only served to a bearer of that account. The second result
// reports whether prices must be hidden from the caller.
func (h *CollectionHandler) collection(c *gin.Context, kind models.CollectionKind) (*service.CollectionService, bool, bool) {
	account, ok := authorize(c, h.sessions)
	if !ok {
		return nil, false, false
	}
	svc, err := h.sessions.Get(c.Request.Context(), middleware.GetSessionID(c), kind)
	if err != nil {
		writeError(c, err)
		return nil, false, false
	}
	withhold := h.sessions.Prices().GatesPrices() && !account.IsActive()
	return svc, withhold, true
}

// get handles GET /v1/{kind}
func (h *CollectionHandler) get(kind models.CollectionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, withhold, ok := h.collection(c, kind)
		if !ok {
			return
		}
		utils.Success(c, 200, "Collection retrieved successfully", present(svc.Snapshot(), withhold))
	}
}

// add handles POST /v1/{kind}
func (h *CollectionHandler) add(kind models.CollectionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Error(c, 400, "VALIDATION_ERROR", "Invalid request body")
			return
		}
		quantity := 1
		if req.Quantity != nil {
			quantity = *req.Quantity
		}

		svc, withhold, ok := h.collection(c, kind)
		if !ok {
			return
		}
		if req.ProductID != "" && quantity > 0 {
			if product, err := h.sessions.Catalog().GetProduct(c.Request.Context(), req.ProductID); err == nil {
				quantity = service.ClampToMOQ(product, quantity)
			}
		}
		_, err := svc.Add(c.Request.Context(), req.ProductID, req.Size, quantity)
		respondMutation(c, err, "Item added", svc.Snapshot(), withhold)
	}
}

// update handles PUT /v1/{kind}/:productId
func (h *CollectionHandler) update(kind models.CollectionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
			utils.Error(c, 400, "VALIDATION_ERROR", "quantity is required")
			return
		}
		size := req.Size
		if size == "" {
			size = c.Query("size")
		}

		svc, withhold, ok := h.collection(c, kind)
		if !ok {
			return
		}
		key := models.LineKey{ProductID: c.Param("productId"), Variant: size}
		_, err := svc.UpdateQuantity(c.Request.Context(), key, *req.Quantity)
		respondMutation(c, err, "Quantity updated", svc.Snapshot(), withhold)
	}
}

// remove handles DELETE /v1/{kind}/:productId?size=
func (h *CollectionHandler) remove(kind models.CollectionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, withhold, ok := h.collection(c, kind)
		if !ok {
			return
		}
		key := models.LineKey{ProductID: c.Param("productId"), Variant: c.Query("size")}
		err := svc.Remove(c.Request.Context(), key)
		respondMutation(c, err, "Item removed", svc.Snapshot(), withhold)
	}
}

// clear handles DELETE /v1/{kind}
func (h *CollectionHandler) clear(kind models.CollectionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, withhold, ok := h.collection(c, kind)
		if !ok {
			return
		}
		err := svc.Clear(c.Request.Context())
		respondMutation(c, err, "Collection cleared", svc.Snapshot(), withhold)
	}
}

// sync handles POST /v1/{kind}/sync and returns the reconciled quantities.
func (h *CollectionHandler) sync(kind models.CollectionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, withhold, ok := h.collection(c, kind)
		if !ok {
			return
		}
		corrections, err := svc.Fetch(c.Request.Context())
		if err != nil {
			respondMutation(c, err, "", svc.Snapshot(), withhold)
			return
		}
		utils.Success(c, 200, "Collection synchronized", gin.H{
			"collection":  present(svc.Snapshot(), withhold),
			"corrections": corrections,
		})
	}
}
