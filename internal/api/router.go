package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/api/handlers"
	"github.com/madeinfrance/catalog-sync/internal/api/middleware"
	"github.com/madeinfrance/catalog-sync/internal/config"
	"github.com/madeinfrance/catalog-sync/internal/metrics"
	"github.com/madeinfrance/catalog-sync/internal/repository"
)

// Dependencies are the services the ops router exposes
type Dependencies struct {
	Repos    *repository.Repositories
	Importer handlers.BrandImporter
	Registry handlers.RegistryLoader
	Metrics  *metrics.Registry
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Catalog Sync",
			"endpoints": []string{
				"GET /health",
				"GET /metrics",
				"GET /v1/brands/:slug/products",
				"POST /v1/sync",
				"POST /v1/sync/:slug",
			},
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/brands/:slug/products", handlers.HandleListBrandProducts(deps.Repos, logger))

		syncRoutes := v1.Group("/sync")
		syncRoutes.Use(middleware.AdminKeyMiddleware(cfg.Server.AdminKeyHash, logger))
		{
			syncRoutes.POST("", handlers.HandleSyncAll(deps.Importer, deps.Registry, cfg.Import.RunTimeout, logger))
			syncRoutes.POST("/:slug", handlers.HandleSyncBrand(deps.Importer, deps.Registry, cfg.Import.RunTimeout, logger))
		}
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
