package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/domain"
	"github.com/madeinfrance/catalog-sync/internal/metrics"
	"github.com/madeinfrance/catalog-sync/internal/repository"
	"github.com/madeinfrance/catalog-sync/internal/shopify"
	"github.com/madeinfrance/catalog-sync/pkg/errors"
)

// Outcome classifies one product synchronization
type Outcome int

const (
	OutcomeErrored Outcome = iota
	OutcomeCreated
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	}
	return "errored"
}

// CatalogSynchronizer upserts storefront products into the catalog, keyed by (brand, external id)
type CatalogSynchronizer struct {
	repos   *repository.Repositories
	metrics *metrics.Registry
	logger  *zap.Logger
}

// NewCatalogSynchronizer creates a synchronizer; m may be nil
func NewCatalogSynchronizer(repos *repository.Repositories, m *metrics.Registry, logger *zap.Logger) *CatalogSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogSynchronizer{repos: repos, metrics: m, logger: logger}
}

// ResolveBrand returns the catalog brand for slug; a missing brand is an *errors.ErrNotFound
func (s *CatalogSynchronizer) ResolveBrand(ctx context.Context, slug string) (*domain.Brand, error) {
	brand, err := s.repos.Brand.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("resolve brand %q: %w", slug, err)
	}
	return brand, nil
}

// SyncProduct creates the product on first sight of its external id and overwrites the
// sync-managed fields on every later call. The error is only informative: callers count
// OutcomeErrored and continue with the next product.
func (s *CatalogSynchronizer) SyncProduct(ctx context.Context, brand *domain.Brand, p shopify.Product) (Outcome, error) {
	outcome, err := s.syncProduct(ctx, brand, p)
	s.metrics.ObserveOutcome(outcome.String())
	if err != nil {
		s.logger.Warn("Failed to sync product",
			zap.String("brand", brand.Slug),
			zap.Int64("external_id", p.ID),
			zap.String("handle", p.Handle),
			zap.Error(err),
		)
	}
	return outcome, err
}

func (s *CatalogSynchronizer) syncProduct(ctx context.Context, brand *domain.Brand, p shopify.Product) (Outcome, error) {
	incoming, err := Transform(brand, p)
	if err != nil {
		return OutcomeErrored, fmt.Errorf("transform: %w", err)
	}

	existing, err := s.repos.Product.GetByExternalID(ctx, brand.ID, incoming.ExternalSource, incoming.ExternalID)
	if err != nil && !errors.IsNotFound(err) {
		return OutcomeErrored, fmt.Errorf("lookup: %w", err)
	}

	if existing == nil {
		incoming.Status = domain.ProductStatusPublished
		if err := s.repos.Product.Create(ctx, incoming); err != nil {
			return OutcomeErrored, fmt.Errorf("create: %w", err)
		}
		return OutcomeCreated, nil
	}

	applyManaged(existing, incoming)
	if err := s.repos.Product.Update(ctx, existing); err != nil {
		return OutcomeErrored, fmt.Errorf("update: %w", err)
	}
	return OutcomeUpdated, nil
}
