package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/domain"
)

// GalleryReport counts the products touched by BackfillGallery
type GalleryReport struct {
	Scanned   int
	Updated   int
	Unchanged int
	Errored   int
}

// BackfillGallery rebuilds gallery_urls of every synced product from its stored snapshot,
// without contacting the storefronts
func (s *CatalogSynchronizer) BackfillGallery(ctx context.Context) (GalleryReport, error) {
	var report GalleryReport
	products, err := s.repos.Product.ListByExternalSource(ctx, domain.ExternalSourceShopify)
	if err != nil {
		return report, fmt.Errorf("list synced products: %w", err)
	}

	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		if p.IsLocked(domain.FieldGalleryURLs) {
			report.Unchanged++
			continue
		}
		snap, err := ParseSnapshot(p.ExternalData)
		if err != nil {
			report.Errored++
			s.logger.Warn("Cannot read product snapshot", zap.String("product_id", p.ID.String()), zap.Error(err))
			continue
		}
		if sameURLs(p.GalleryURLs, snap.Images) {
			report.Unchanged++
			continue
		}
		if err := s.repos.Product.UpdateGallery(ctx, p.ID, snap.Images); err != nil {
			report.Errored++
			continue
		}
		report.Updated++
	}

	s.logger.Info("Gallery backfill finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("updated", report.Updated),
		zap.Int("errored", report.Errored),
	)
	return report, nil
}

func sameURLs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
