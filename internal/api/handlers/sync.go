package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/registry"
	"github.com/madeinfrance/catalog-sync/internal/service"
)

// BrandImporter runs imports; *service.Importer implements it
type BrandImporter interface {
	Run(ctx context.Context, entries []registry.Entry) *service.RunSummary
	ImportBrand(ctx context.Context, entry registry.Entry) service.BrandReport
}

// RegistryLoader returns the current brand registry
type RegistryLoader func() ([]registry.Entry, error)

// HandleSyncAll handles POST /v1/sync: starts a registry-wide import in the background
func HandleSyncAll(importer BrandImporter, loadRegistry RegistryLoader, runTimeout time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := loadRegistry()
		if err != nil {
			logger.Error("Failed to load brand registry", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load brand registry"})
			return
		}

		started := make(chan error, 1)
		go func() {
			err := service.RunExclusive(func() {
				started <- nil
				ctx, cancel := runContext(runTimeout)
				defer cancel()
				summary := importer.Run(ctx, entries)
				logger.Info("Background import finished",
					zap.Int("created", summary.Created),
					zap.Int("updated", summary.Updated),
					zap.Int("errored", summary.Errored),
					zap.Bool("canceled", summary.Canceled),
				)
			})
			if err != nil {
				started <- err
			}
		}()

		if err := <-started; err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "started", "brands": len(entries)})
	}
}

// HandleSyncBrand handles POST /v1/sync/:slug: imports one brand and returns its report.
// The domain comes from the request body, else from the registry.
func HandleSyncBrand(importer BrandImporter, loadRegistry RegistryLoader, runTimeout time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")

		var req service.SyncBrandRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
				return
			}
		}

		entry := registry.Entry{Slug: slug, Domain: registry.NormalizeDomain(req.Domain)}
		if entry.Domain == "" {
			entries, err := loadRegistry()
			if err != nil {
				logger.Error("Failed to load brand registry", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load brand registry"})
				return
			}
			for _, e := range entries {
				if e.Slug == slug {
					entry = e
					break
				}
			}
		}
		if entry.Domain == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "brand is not in the registry and no domain was given"})
			return
		}

		var report service.BrandReport
		err := service.RunExclusive(func() {
			ctx, cancel := runContext(runTimeout)
			defer cancel()
			report = importer.ImportBrand(ctx, entry)
		})
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, service.NewBrandReportResponse(report))
	}
}

// runContext detaches the import from the HTTP request so a client disconnect does not abort it
func runContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}
