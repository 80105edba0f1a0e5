package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/repository"
	"github.com/madeinfrance/catalog-sync/internal/service"
	"github.com/madeinfrance/catalog-sync/pkg/errors"
)

// HandleListBrandProducts handles GET /v1/brands/:slug/products
func HandleListBrandProducts(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")
		limit := 50
		if l := c.Query("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n >= 1 && n <= 250 {
				limit = n
			}
		}
		offset := 0
		if o := c.Query("offset"); o != "" {
			if n, err := strconv.Atoi(o); err == nil && n >= 0 {
				offset = n
			}
		}

		brand, err := repos.Brand.GetBySlug(c.Request.Context(), slug)
		if err != nil {
			if errors.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "brand not found"})
				return
			}
			logger.Error("Failed to get brand", zap.Error(err), zap.String("brand", slug))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		products, err := repos.Product.ListByBrandID(c.Request.Context(), brand.ID, limit, offset)
		if err != nil {
			logger.Error("Failed to list products", zap.Error(err), zap.String("brand", slug))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		items := make([]service.ProductResponse, 0, len(products))
		for _, p := range products {
			items = append(items, service.NewProductResponse(p))
		}
		c.JSON(http.StatusOK, gin.H{
			"data":       items,
			"pagination": gin.H{"limit": limit, "offset": offset, "count": len(items)},
		})
	}
}
