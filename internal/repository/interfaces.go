package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/madeinfrance/catalog-sync/internal/domain"
)

// BrandRepository defines brand data access methods
type BrandRepository interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Brand, error)
	ListWithWebsite(ctx context.Context) ([]*domain.Brand, error)
}

// ProductRepository defines product data access methods.
// (BrandID, ExternalSource, ExternalID) identifies a synchronized product.
type ProductRepository interface {
	GetByExternalID(ctx context.Context, brandID uuid.UUID, source, externalID string) (*domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	UpdateGallery(ctx context.Context, id uuid.UUID, galleryURLs []string) error
	ListByExternalSource(ctx context.Context, source string) ([]*domain.Product, error)
	ListByBrandID(ctx context.Context, brandID uuid.UUID, limit, offset int) ([]*domain.Product, error)
}

// Repositories aggregates all repositories
type Repositories struct {
	Brand   BrandRepository
	Product ProductRepository
}
