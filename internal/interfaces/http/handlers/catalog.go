// internal/interfaces/http/handlers/catalog.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/maxreshetnik/portfolio/internal/domain/catalog"
	"github.com/maxreshetnik/portfolio/internal/interfaces/http/middleware"
)

// CatalogHandler handles catalog browsing, search and rating endpoints
type CatalogHandler struct {
	catalogService *catalog.Service
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *catalog.Service) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// GetCategories handles GET /catalog/categories
func (h *CatalogHandler) GetCategories(c *gin.Context) {
	categories, err := h.catalogService.CategoryTree(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve categories",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": categories,
	})
}

// GetCategoryItems handles GET /catalog/categories/:id/items
func (h *CatalogHandler) GetCategoryItems(c *gin.Context) {
	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.catalogService.SpecsByCategory(c.Request.Context(), categoryID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve items",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": items,
	})
}

// GetNewArrivals handles GET /catalog/new
func (h *CatalogHandler) GetNewArrivals(c *gin.Context) {
	items, err := h.catalogService.NewArrivals(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve new arrivals",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": items,
	})
}

// GetPopular handles GET /catalog/popular
func (h *CatalogHandler) GetPopular(c *gin.Context) {
	items, err := h.catalogService.Popular(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve popular items",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": items,
	})
}

// GetItem handles GET /catalog/items/:id
func (h *CatalogHandler) GetItem(c *gin.Context) {
	specID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	item, rates, err := h.catalogService.SpecDetail(c.Request.Context(), specID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve item",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    item,
		"reviews": rates,
	})
}

// Search handles GET /catalog/search?q=...
func (h *CatalogHandler) Search(c *gin.Context) {
	query := c.Query("q")

	result, err := h.catalogService.Search(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": result,
	})
}

// InvalidateCategoryCache handles DELETE /admin/catalog/cache
func (h *CatalogHandler) InvalidateCategoryCache(c *gin.Context) {
	h.catalogService.InvalidateCategoryCache(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"message": "Category cache invalidated",
	})
}

// RateProductRequest carries a product rating submission.
type RateProductRequest struct {
	Kind      string `json:"kind" binding:"required"`
	ProductID uint   `json:"product_id" binding:"required"`
	Point     int    `json:"point" binding:"required"`
	Review    string `json:"review"`
}

// RateProduct handles POST /catalog/rates
func (h *CatalogHandler) RateProduct(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req RateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ref := catalog.ProductRef{Kind: catalog.ProductKind(req.Kind), ID: req.ProductID}
	err := h.catalogService.RateProduct(c.Request.Context(), userID, ref, req.Point, req.Review)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, catalog.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save rating"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Rating saved successfully",
	})
}

// parseIDParam parses a positive integer path parameter, writing the
// error response itself on failure.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || value == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(value), true
}
