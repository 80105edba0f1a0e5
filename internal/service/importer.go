package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/metrics"
	"github.com/madeinfrance/catalog-sync/internal/registry"
	"github.com/madeinfrance/catalog-sync/internal/shopify"
	"github.com/madeinfrance/catalog-sync/pkg/errors"
)

// ProductFetcher returns a storefront's catalog; a non-nil error may come with a partial list
type ProductFetcher interface {
	FetchProducts(ctx context.Context, domain string) ([]shopify.Product, error)
}

// BrandReport is the result of importing one registry entry
type BrandReport struct {
	Slug       string
	Domain     string
	Fetched    int
	Created    int
	Updated    int
	Errored    int
	Skipped    bool
	SkipReason string
	FetchErr   error // set when the catalog could not be read to the end
	Duration   time.Duration
}

// Partial reports whether products were synced from an incomplete catalog
func (r *BrandReport) Partial() bool {
	return r.FetchErr != nil && r.Fetched > 0
}

// RunSummary aggregates a run over the registry
type RunSummary struct {
	Brands          []BrandReport
	Created         int
	Updated         int
	Errored         int
	BrandsProcessed int
	BrandsSkipped   int
	BrandsPartial   int
	Canceled        bool // the run context ended before every entry was handled
	Duration        time.Duration
}

func (s *RunSummary) add(r BrandReport) {
	s.Brands = append(s.Brands, r)
	s.Created += r.Created
	s.Updated += r.Updated
	s.Errored += r.Errored
	if r.Skipped {
		s.BrandsSkipped++
		return
	}
	s.BrandsProcessed++
	if r.Partial() {
		s.BrandsPartial++
	}
}

// Importer drives FETCH → SYNC → ACCUMULATE for each registry entry, one brand at a time
type Importer struct {
	fetcher    ProductFetcher
	sync       *CatalogSynchronizer
	brandDelay time.Duration
	metrics    *metrics.Registry
	out        io.Writer
	logger     *zap.Logger
}

// NewImporter creates an importer; progress lines go to out (io.Discard when nil)
func NewImporter(fetcher ProductFetcher, synchronizer *CatalogSynchronizer, brandDelay time.Duration, m *metrics.Registry, out io.Writer, logger *zap.Logger) *Importer {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		fetcher:    fetcher,
		sync:       synchronizer,
		brandDelay: brandDelay,
		metrics:    m,
		out:        out,
		logger:     logger,
	}
}

// Run imports every entry in order. Per-brand and per-product failures are recorded in the
// summary; the run only stops early when ctx ends.
func (i *Importer) Run(ctx context.Context, entries []registry.Entry) *RunSummary {
	start := time.Now()
	summary := &RunSummary{}

	i.logger.Info("Import run started", zap.Int("brands", len(entries)))
	for n, entry := range entries {
		// pause after each brand has finished, on top of the page delay inside it
		if n > 0 && i.brandDelay > 0 {
			if err := sleep(ctx, i.brandDelay); err != nil {
				summary.Canceled = true
				break
			}
		}
		if ctx.Err() != nil {
			summary.Canceled = true
			break
		}
		fmt.Fprintf(i.out, "[%d/%d] %s (%s)\n", n+1, len(entries), entry.Slug, entry.Domain)
		report := i.ImportBrand(ctx, entry)
		summary.add(report)
		if ctx.Err() != nil {
			summary.Canceled = true
			break
		}
	}
	summary.Duration = time.Since(start)

	if summary.Canceled {
		i.logger.Warn("Import run interrupted", zap.Error(ctx.Err()), zap.Int("brands_done", len(summary.Brands)))
	} else {
		i.metrics.ObserveRun(summary.Duration, time.Now())
	}
	i.logger.Info("Import run finished",
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("errored", summary.Errored),
		zap.Int("brands_processed", summary.BrandsProcessed),
		zap.Int("brands_skipped", summary.BrandsSkipped),
		zap.Duration("duration", summary.Duration),
	)
	return summary
}

// ImportBrand fetches one storefront and synchronizes each of its products
func (i *Importer) ImportBrand(ctx context.Context, entry registry.Entry) (report BrandReport) {
	start := time.Now()
	report = BrandReport{Slug: entry.Slug, Domain: entry.Domain}
	defer func() {
		report.Duration = time.Since(start)
		i.recordBrand(&report)
	}()

	brand, err := i.sync.ResolveBrand(ctx, entry.Slug)
	if err != nil {
		report.Skipped = true
		if errors.IsNotFound(err) {
			report.SkipReason = "brand not found"
			i.logger.Warn("Brand not found in catalog, skipping", zap.String("brand", entry.Slug))
		} else {
			report.SkipReason = err.Error()
			i.logger.Error("Failed to resolve brand, skipping", zap.String("brand", entry.Slug), zap.Error(err))
		}
		fmt.Fprintf(i.out, "  skipped: %s\n", report.SkipReason)
		return report
	}

	products, err := i.fetcher.FetchProducts(ctx, entry.Domain)
	report.Fetched = len(products)
	if err != nil {
		report.FetchErr = err
		i.logger.Warn("Storefront catalog incomplete",
			zap.String("brand", entry.Slug),
			zap.String("domain", entry.Domain),
			zap.Int("fetched", len(products)),
			zap.Error(err),
		)
		fmt.Fprintf(i.out, "  warning: catalog incomplete after %d products: %v\n", len(products), err)
	}
	if len(products) == 0 {
		report.Skipped = true
		report.SkipReason = "no products fetched"
		fmt.Fprintf(i.out, "  skipped: %s\n", report.SkipReason)
		return report
	}
	fmt.Fprintf(i.out, "  fetched %d products\n", len(products))

	for _, p := range products {
		if ctx.Err() != nil {
			break
		}
		outcome, _ := i.sync.SyncProduct(ctx, brand, p)
		switch outcome {
		case OutcomeCreated:
			report.Created++
		case OutcomeUpdated:
			report.Updated++
		default:
			report.Errored++
		}
	}

	fmt.Fprintf(i.out, "  created %d, updated %d, errors %d\n", report.Created, report.Updated, report.Errored)
	return report
}

func (i *Importer) recordBrand(r *BrandReport) {
	switch {
	case r.Skipped:
		i.metrics.ObserveBrand("skipped")
	case r.Partial():
		i.metrics.ObserveBrand("partial")
	default:
		i.metrics.ObserveBrand("processed")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// importMu keeps a single import running per process
var importMu sync.Mutex

// RunExclusive runs fn unless another exclusive import is in progress
func RunExclusive(fn func()) error {
	if !importMu.TryLock() {
		return &errors.ErrConflict{Message: "an import is already running"}
	}
	defer importMu.Unlock()
	fn()
	return nil
}

// RunLoop imports the registry right away, then every interval, until ctx ends. A tick that
// finds another import in progress is skipped.
func (i *Importer) RunLoop(ctx context.Context, interval time.Duration, load func() ([]registry.Entry, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		i.runScheduled(ctx, load)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (i *Importer) runScheduled(ctx context.Context, load func() ([]registry.Entry, error)) {
	entries, err := load()
	if err != nil {
		i.logger.Error("Scheduled import: failed to load registry", zap.Error(err))
		return
	}
	if err := RunExclusive(func() { i.Run(ctx, entries) }); err != nil {
		i.logger.Info("Scheduled import skipped", zap.Error(err))
	}
}

// PrintSummary writes the end-of-run report
func PrintSummary(w io.Writer, s *RunSummary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "  Import Summary")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Products created:  %d\n", s.Created)
	fmt.Fprintf(w, "Products updated:  %d\n", s.Updated)
	fmt.Fprintf(w, "Products errored:  %d\n", s.Errored)
	fmt.Fprintf(w, "Brands processed:  %d\n", s.BrandsProcessed)
	fmt.Fprintf(w, "Brands skipped:    %d\n", s.BrandsSkipped)
	if s.BrandsPartial > 0 {
		fmt.Fprintf(w, "Partial catalogs:  %d\n", s.BrandsPartial)
		for _, b := range s.Brands {
			if b.Partial() {
				fmt.Fprintf(w, "  - %s: %v\n", b.Slug, b.FetchErr)
			}
		}
	}
	if s.Canceled {
		fmt.Fprintln(w, "Run interrupted before every brand was processed.")
	}
	fmt.Fprintf(w, "Duration:          %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintln(w)
}
