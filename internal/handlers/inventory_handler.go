package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "stocktrail/internal/errors"
	"stocktrail/internal/pagination"
	"stocktrail/internal/period"
	"stocktrail/internal/services"
)

// InventoryHandler handles product and stock movement requests
type InventoryHandler struct {
	inventoryService services.InventoryServicer
	auditService     services.AuditServicer
	now              func() time.Time
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(inventoryService services.InventoryServicer, auditService services.AuditServicer) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService, auditService: auditService, now: time.Now}
}

// ProductRequest represents the request payload for creating a product
type ProductRequest struct {
	Name         string  `json:"name" binding:"required,max=200"`
	SKU          string  `json:"sku" binding:"required,max=100"`
	Description  string  `json:"description" binding:"max=1000"`
	SellingPrice float64 `json:"selling_price" binding:"gte=0"`
	BuyingPrice  float64 `json:"buying_price" binding:"gte=0"`
	Quantity     int     `json:"quantity" binding:"gte=0"`
	CategoryID   *string `json:"category_id" binding:"omitempty,uuid"`
}

func (r ProductRequest) toInput() services.ProductInput {
	return services.ProductInput{
		Name:         r.Name,
		SKU:          r.SKU,
		Description:  r.Description,
		SellingPrice: r.SellingPrice,
		BuyingPrice:  r.BuyingPrice,
		Quantity:     r.Quantity,
		CategoryID:   r.CategoryID,
	}
}

// BulkProductRequest creates several products in one transaction
type BulkProductRequest struct {
	Products []ProductRequest `json:"products" binding:"required,min=1,max=500,dive"`
}

// UpdateProductRequest represents the request payload for updating product
// details. Quantity is changed through the adjust endpoint only.
type UpdateProductRequest struct {
	Name         *string  `json:"name" binding:"omitempty,min=1,max=200"`
	SKU          *string  `json:"sku" binding:"omitempty,min=1,max=100"`
	Description  *string  `json:"description" binding:"omitempty,max=1000"`
	SellingPrice *float64 `json:"selling_price" binding:"omitempty,gte=0"`
	BuyingPrice  *float64 `json:"buying_price" binding:"omitempty,gte=0"`
	CategoryID   *string  `json:"category_id" binding:"omitempty,optional_uuid"`
}

// AdjustQuantityRequest represents a stock movement
type AdjustQuantityRequest struct {
	Type         string   `json:"type" binding:"required,adjust_type"`
	Quantity     int      `json:"quantity" binding:"required,gt=0"`
	BuyingPrice  *float64 `json:"buying_price" binding:"omitempty,gte=0"`
	SellingPrice *float64 `json:"selling_price" binding:"omitempty,gte=0"`
}

// RenameHistoryRequest rewrites the product name and SKU stored on history
// records. Omitted fields take the product's current value.
type RenameHistoryRequest struct {
	ProductName *string `json:"product_name" binding:"omitempty,min=1,max=200"`
	SKU         *string `json:"sku" binding:"omitempty,min=1,max=100"`
}

// ProductListQuery holds the list filters
type ProductListQuery struct {
	pagination.PageRequest
	Search     string  `form:"search" binding:"max=200"`
	CategoryID *string `form:"category_id" binding:"omitempty,uuid"`
}

// StockAtResponse is the reconstructed quantity of a product at an instant
type StockAtResponse struct {
	ProductID string    `json:"product_id"`
	At        time.Time `json:"at"`
	Quantity  int       `json:"quantity"`
}

// RenameHistoryResponse reports how many records were rewritten
type RenameHistoryResponse struct {
	Updated int64 `json:"updated"`
}

// GetProducts lists the user's products
// @Summary     List products
// @Tags        inventory
// @Produce     json
// @Security    BearerAuth
// @Param       page        query int    false "Page number"
// @Param       page_size   query int    false "Page size"
// @Param       search      query string false "Match on name or SKU"
// @Param       category_id query string false "Category ID"
// @Success     200 {object} pagination.PageResponse[models.Product]
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /inventory [get]
func (h *InventoryHandler) GetProducts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ProductListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	q.Defaults()

	result, err := h.inventoryService.GetUserProducts(userID, q.PageRequest, services.ProductFilter{
		Search:     q.Search,
		CategoryID: q.CategoryID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreateProduct adds a product and records its initial stock
// @Summary     Create a product
// @Tags        inventory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ProductRequest true "Product details"
// @Success     201 {object} models.Product
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Duplicate product"
// @Router      /inventory [post]
func (h *InventoryHandler) CreateProduct(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	product, err := h.inventoryService.CreateProduct(userID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// BulkCreateProducts adds several products at once
// @Summary     Bulk create products
// @Description Creates every product or none of them
// @Tags        inventory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BulkProductRequest true "Products"
// @Success     201 {array} models.Product
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Duplicate product"
// @Router      /inventory/bulk [post]
func (h *InventoryHandler) BulkCreateProducts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BulkProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	inputs := make([]services.ProductInput, len(req.Products))
	for i, p := range req.Products {
		inputs[i] = p.toInput()
	}

	products, err := h.inventoryService.BulkCreateProducts(userID, inputs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"products": products})
}

// GetProduct returns one product
// @Summary     Get product by ID
// @Tags        inventory
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Product ID"
// @Success     200 {object} models.Product
// @Failure     404 {object} ErrorResponse "Product not found"
// @Router      /inventory/{id} [get]
func (h *InventoryHandler) GetProduct(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	productID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	product, err := h.inventoryService.GetProductByID(userID, productID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}

// UpdateProduct edits product details
// @Summary     Update product details
// @Description Changes details and records an edit. An empty category_id removes the category.
// @Tags        inventory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Product ID"
// @Param       request body UpdateProductRequest true "Fields to change"
// @Success     200 {object} models.Product
// @Failure     404 {object} ErrorResponse "Product not found"
// @Failure     409 {object} ErrorResponse "Duplicate product"
// @Router      /inventory/{id} [put]
func (h *InventoryHandler) UpdateProduct(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	productID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	product, err := h.inventoryService.UpdateProduct(userID, productID, services.ProductUpdate{
		Name:         req.Name,
		SKU:          req.SKU,
		Description:  req.Description,
		SellingPrice: req.SellingPrice,
		BuyingPrice:  req.BuyingPrice,
		CategoryID:   req.CategoryID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}

// AdjustQuantity adds or sells stock
// @Summary     Adjust product quantity
// @Description "add" restocks. A buying price that differs from the product's creates a new product with a suffixed SKU. "reduce" records a sale.
// @Tags        inventory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Product ID"
// @Param       request body AdjustQuantityRequest true "Movement"
// @Success     200 {object} services.AdjustResult
// @Success     201 {object} services.AdjustResult "New product created for a different cost"
// @Failure     400 {object} ErrorResponse "Invalid input or insufficient stock"
// @Failure     404 {object} ErrorResponse "Product not found"
// @Router      /inventory/{id}/adjust [post]
func (h *InventoryHandler) AdjustQuantity(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	productID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AdjustQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.inventoryService.AdjustQuantity(userID, productID, services.QuantityAdjustment{
		Type:         services.AdjustType(req.Type),
		Quantity:     req.Quantity,
		BuyingPrice:  req.BuyingPrice,
		SellingPrice: req.SellingPrice,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	status := http.StatusOK
	if result.Forked {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

// DeleteProduct removes a product and records the write-off
// @Summary     Delete product
// @Description Removes the product. Its history is kept.
// @Tags        inventory
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Product ID"
// @Success     200 {object} MessageResponse
// @Failure     404 {object} ErrorResponse "Product not found"
// @Router      /inventory/{id} [delete]
func (h *InventoryHandler) DeleteProduct(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	productID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.inventoryService.DeleteProduct(userID, productID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteProduct, "product", productID, c.ClientIP(), nil)
	c.JSON(http.StatusOK, MessageResponse{Message: "Product deleted successfully"})
}

// RenameHistory rewrites the name and SKU stored on a product's records
// @Summary     Rename product history
// @Description Rewrites the denormalized name and SKU on every record of the product. Running it twice has no further effect.
// @Tags        inventory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Product ID"
// @Param       request body RenameHistoryRequest true "New name and SKU"
// @Success     200 {object} RenameHistoryResponse
// @Failure     404 {object} ErrorResponse "Product not found"
// @Router      /inventory/{id}/history [put]
func (h *InventoryHandler) RenameHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	productID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RenameHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	updated, err := h.inventoryService.RenameHistory(userID, productID, req.ProductName, req.SKU)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{"updated": updated}
	if req.ProductName != nil {
		changes["product_name"] = *req.ProductName
	}
	if req.SKU != nil {
		changes["sku"] = *req.SKU
	}
	h.auditService.Log(userID, services.AuditRenameHistory, "product", productID, c.ClientIP(), changes)
	c.JSON(http.StatusOK, RenameHistoryResponse{Updated: updated})
}

// StockAt reconstructs a product's quantity from its history
// @Summary     Stock at an instant
// @Tags        inventory
// @Produce     json
// @Security    BearerAuth
// @Param       id path  string true  "Product ID"
// @Param       at query string false "RFC3339 instant or YYYY-MM-DD (end of that day). Defaults to now."
// @Success     200 {object} StockAtResponse
// @Failure     404 {object} ErrorResponse "No history for product"
// @Router      /inventory/{id}/stock [get]
func (h *InventoryHandler) StockAt(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	productID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	at, err := parseInstant(c.Query("at"), h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	quantity, err := h.inventoryService.StockAt(userID, productID, at)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, StockAtResponse{ProductID: productID, At: at, Quantity: quantity})
}

// parseInstant reads an RFC3339 instant or a date meaning the end of that
// day. Empty means now.
func parseInstant(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	d, err := period.ParseDate(s, now.Location())
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidRange, "at must be RFC3339 or YYYY-MM-DD")
	}
	return period.EndOfDay(d), nil
}
