package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/madeinfrance/catalog-sync/internal/registry"
	"github.com/madeinfrance/catalog-sync/internal/repository"
)

const (
	defaultScanConcurrency = 4
	// probes hit distinct hosts; the rate only bounds our own outbound traffic
	defaultProbeRate = 10
)

// StorefrontProber tells whether a domain exposes a Shopify products feed
type StorefrontProber interface {
	Probe(ctx context.Context, domain string) (bool, error)
}

type ScanResult struct {
	Slug    string
	Domain  string
	Shopify bool
	Err     error
}

// Scanner probes the website of every catalog brand to find Shopify storefronts
type Scanner struct {
	brands      repository.BrandRepository
	prober      StorefrontProber
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

func NewScanner(brands repository.BrandRepository, prober StorefrontProber, concurrency int, logger *zap.Logger) *Scanner {
	if concurrency <= 0 {
		concurrency = defaultScanConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		brands:      brands,
		prober:      prober,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(rate.Limit(defaultProbeRate), concurrency),
		logger:      logger,
	}
}

// Scan probes all brands with a website. Probe failures are reported per brand.
func (s *Scanner) Scan(ctx context.Context) ([]ScanResult, error) {
	brands, err := s.brands.ListWithWebsite(ctx)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}

	results := make([]ScanResult, len(brands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, b := range brands {
		i, b := i, b
		results[i] = ScanResult{Slug: b.Slug}
		if b.Website == nil {
			continue
		}
		results[i].Domain = registry.NormalizeDomain(*b.Website)
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				results[i].Err = err
				return nil
			}
			ok, err := s.prober.Probe(gctx, results[i].Domain)
			results[i].Shopify = ok
			results[i].Err = err
			if err != nil {
				s.logger.Debug("Storefront probe failed", zap.String("brand", b.Slug), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].Slug < results[b].Slug })
	return results, ctx.Err()
}

// ShopifyEntries turns positive scan results into registry entries
func ShopifyEntries(results []ScanResult) []registry.Entry {
	var entries []registry.Entry
	for _, r := range results {
		if r.Shopify {
			entries = append(entries, registry.Entry{Slug: r.Slug, Domain: r.Domain})
		}
	}
	return entries
}
