package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madeinfrance/catalog-sync/internal/metrics"
	"github.com/madeinfrance/catalog-sync/internal/registry"
	"github.com/madeinfrance/catalog-sync/internal/shopify"
)

func newTestImporter(fetcher ProductFetcher, brands *fakeBrandRepo, products *fakeProductRepo, reg *metrics.Registry, out *bytes.Buffer) *Importer {
	s := NewCatalogSynchronizer(newRepos(brands, products), reg, nil)
	return NewImporter(fetcher, s, 0, reg, out, nil)
}

func TestImporterRun_CreatesThenUpdates(t *testing.T) {
	fetcher := &fakeFetcher{catalogs: map[string][]shopify.Product{"acme.example": {widget()}}}
	brands := newFakeBrandRepo("acme")
	products := newFakeProductRepo()
	var out bytes.Buffer
	imp := newTestImporter(fetcher, brands, products, nil, &out)
	entries := []registry.Entry{{Slug: "acme", Domain: "acme.example"}}

	first := imp.Run(context.Background(), entries)
	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, first.Updated)
	assert.Equal(t, 0, first.Errored)
	assert.Equal(t, 1, first.BrandsProcessed)
	assert.False(t, first.Canceled)

	second := imp.Run(context.Background(), entries)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)
	assert.Len(t, products.all(), 1)

	assert.Contains(t, out.String(), "[1/1] acme (acme.example)")
	assert.Contains(t, out.String(), "fetched 1 products")
}

func TestImporterRun_SkipsUnknownBrandWithoutFetching(t *testing.T) {
	fetcher := &fakeFetcher{catalogs: map[string][]shopify.Product{"ghost.example": {widget()}}}
	brands := newFakeBrandRepo()
	products := newFakeProductRepo()
	reg := metrics.NewRegistry()
	imp := newTestImporter(fetcher, brands, products, reg, &bytes.Buffer{})

	summary := imp.Run(context.Background(), []registry.Entry{{Slug: "ghost", Domain: "ghost.example"}})

	assert.Equal(t, 1, summary.BrandsSkipped)
	assert.Equal(t, 0, summary.BrandsProcessed)
	assert.Equal(t, 0, summary.Created+summary.Updated+summary.Errored)
	require.Len(t, summary.Brands, 1)
	assert.Equal(t, "brand not found", summary.Brands[0].SkipReason)
	assert.Empty(t, fetcher.calls)
	assert.Empty(t, products.all())
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Brands.WithLabelValues("skipped")))
}

func TestImporterRun_SkipsEmptyCatalog(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{"acme.example": fmt.Errorf("status 403")}}
	imp := newTestImporter(fetcher, newFakeBrandRepo("acme"), newFakeProductRepo(), nil, &bytes.Buffer{})

	summary := imp.Run(context.Background(), []registry.Entry{{Slug: "acme", Domain: "acme.example"}})

	assert.Equal(t, 1, summary.BrandsSkipped)
	assert.Equal(t, "no products fetched", summary.Brands[0].SkipReason)
	assert.Error(t, summary.Brands[0].FetchErr)
	assert.Equal(t, 0, summary.BrandsPartial)
}

func TestImporterRun_SyncsPartialCatalog(t *testing.T) {
	first := widget()
	second := widget()
	second.ID, second.Handle = 2, "gadget"
	fetcher := &fakeFetcher{
		catalogs: map[string][]shopify.Product{"acme.example": {first, second}},
		errs:     map[string]error{"acme.example": &shopify.FetchError{Domain: "acme.example", Page: 2, StatusCode: 502, Attempts: 3, Err: fmt.Errorf("bad gateway")}},
	}
	reg := metrics.NewRegistry()
	var out bytes.Buffer
	imp := newTestImporter(fetcher, newFakeBrandRepo("acme"), newFakeProductRepo(), reg, &out)

	summary := imp.Run(context.Background(), []registry.Entry{{Slug: "acme", Domain: "acme.example"}})

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.BrandsProcessed)
	assert.Equal(t, 1, summary.BrandsPartial)
	assert.True(t, summary.Brands[0].Partial())
	assert.Contains(t, out.String(), "catalog incomplete after 2 products")
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Brands.WithLabelValues("partial")))
}

func TestImporterRun_ProductErrorsDoNotStopTheBrand(t *testing.T) {
	bad := widget()
	bad.ID, bad.Handle = 3, "broken"
	good := widget()
	good.ID, good.Handle = 4, "fine"
	fetcher := &fakeFetcher{catalogs: map[string][]shopify.Product{
		"acme.example": {bad, good},
		"bolt.example": {widget()},
	}}
	products := newFakeProductRepo()
	products.failSlugs["acme-broken"] = true
	imp := newTestImporter(fetcher, newFakeBrandRepo("acme", "bolt"), products, nil, &bytes.Buffer{})

	summary := imp.Run(context.Background(), []registry.Entry{
		{Slug: "acme", Domain: "acme.example"},
		{Slug: "bolt", Domain: "bolt.example"},
	})

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 2, summary.BrandsProcessed)
	assert.Equal(t, []string{"acme.example", "bolt.example"}, fetcher.calls)
}

func TestImporterRun_StopsWhenContextEnds(t *testing.T) {
	fetcher := &fakeFetcher{catalogs: map[string][]shopify.Product{"acme.example": {widget()}}}
	imp := newTestImporter(fetcher, newFakeBrandRepo("acme"), newFakeProductRepo(), nil, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary := imp.Run(ctx, []registry.Entry{{Slug: "acme", Domain: "acme.example"}})

	assert.True(t, summary.Canceled)
	assert.Empty(t, summary.Brands)
	assert.Empty(t, fetcher.calls)
}

func TestImporterRun_BrandDelay(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := NewCatalogSynchronizer(newRepos(newFakeBrandRepo("a", "b", "c"), newFakeProductRepo()), nil, nil)
	imp := NewImporter(fetcher, s, 20*time.Millisecond, nil, nil, nil)

	start := time.Now()
	summary := imp.Run(context.Background(), []registry.Entry{
		{Slug: "a", Domain: "a.example"},
		{Slug: "b", Domain: "b.example"},
		{Slug: "c", Domain: "c.example"},
	})

	assert.Len(t, summary.Brands, 3)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestImporterRun_BrandDelayFollowsSlowBrands(t *testing.T) {
	fetcher := &fakeFetcher{delay: 100 * time.Millisecond}
	s := NewCatalogSynchronizer(newRepos(newFakeBrandRepo("a", "b", "c"), newFakeProductRepo()), nil, nil)
	imp := NewImporter(fetcher, s, 80*time.Millisecond, nil, nil, nil)

	start := time.Now()
	summary := imp.Run(context.Background(), []registry.Entry{
		{Slug: "a", Domain: "a.example"},
		{Slug: "b", Domain: "b.example"},
		{Slug: "c", Domain: "c.example"},
	})

	// three fetches plus two full pauses between brands
	assert.Len(t, summary.Brands, 3)
	assert.GreaterOrEqual(t, time.Since(start), 450*time.Millisecond)
}

func TestImporterRun_CanceledDuringBrandDelay(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := NewCatalogSynchronizer(newRepos(newFakeBrandRepo("a", "b"), newFakeProductRepo()), nil, nil)
	imp := NewImporter(fetcher, s, time.Hour, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	summary := imp.Run(ctx, []registry.Entry{
		{Slug: "a", Domain: "a.example"},
		{Slug: "b", Domain: "b.example"},
	})

	assert.True(t, summary.Canceled)
	assert.Len(t, summary.Brands, 1)
	assert.Equal(t, []string{"a.example"}, fetcher.calls)
}

func TestRunExclusive(t *testing.T) {
	inner := make(chan error, 1)
	err := RunExclusive(func() {
		inner <- RunExclusive(func() {})
	})
	require.NoError(t, err)
	assert.Error(t, <-inner)

	assert.NoError(t, RunExclusive(func() {}))
}

func TestPrintSummary(t *testing.T) {
	s := &RunSummary{
		Created:         3,
		Updated:         5,
		Errored:         1,
		BrandsProcessed: 2,
		BrandsSkipped:   1,
		BrandsPartial:   1,
		Canceled:        true,
		Duration:        1500 * time.Millisecond,
		Brands: []BrandReport{
			{Slug: "acme", Fetched: 4, FetchErr: fmt.Errorf("page 2 timed out")},
			{Slug: "bolt", Fetched: 4},
		},
	}
	var buf bytes.Buffer
	PrintSummary(&buf, s)
	out := buf.String()

	for _, want := range []string{
		"Import Summary",
		"Products created:  3",
		"Products updated:  5",
		"Products errored:  1",
		"Brands processed:  2",
		"Brands skipped:    1",
		"Partial catalogs:  1",
		"  - acme: page 2 timed out",
		"Run interrupted",
		"Duration:          1.5s",
	} {
		assert.Contains(t, out, want)
	}
	assert.False(t, strings.Contains(out, "bolt"))
}

func TestImporterRunLoop(t *testing.T) {
	fetcher := &fakeFetcher{catalogs: map[string][]shopify.Product{"acme.example": {widget()}}}
	products := newFakeProductRepo()
	imp := newTestImporter(fetcher, newFakeBrandRepo("acme"), products, nil, &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	loads := 0
	imp.RunLoop(ctx, 20*time.Millisecond, func() ([]registry.Entry, error) {
		loads++
		if loads == 2 {
			return nil, fmt.Errorf("registry unreadable")
		}
		return []registry.Entry{{Slug: "acme", Domain: "acme.example"}}, nil
	})

	// the second load fails, and a tick racing the deadline loads without fetching
	assert.GreaterOrEqual(t, loads, 3)
	assert.GreaterOrEqual(t, len(fetcher.calls), 2)
	assert.LessOrEqual(t, len(fetcher.calls), loads-1)
	assert.Len(t, products.all(), 1)
}
