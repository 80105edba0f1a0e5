package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madeinfrance/catalog-sync/internal/config"
	"github.com/madeinfrance/catalog-sync/internal/metrics"
)

// fakeStorefront serves /products.json from a list of page sizes
type fakeStorefront struct {
	mu       sync.Mutex
	pages    []int
	requests []string
	// status overrides by request index (0-based); missing means 200
	statuses map[int]int
}

func (f *fakeStorefront) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	idx := len(f.requests)
	f.requests = append(f.requests, r.URL.RequestURI())
	status, override := f.statuses[idx]
	f.mu.Unlock()

	if override {
		w.WriteHeader(status)
		return
	}
	if r.URL.Path != productsPath {
		http.NotFound(w, r)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	n := 0
	if page >= 1 && page <= len(f.pages) {
		n = f.pages[page-1]
	}
	writeProducts(w, page, n)
}

func writeProducts(w http.ResponseWriter, page, n int) {
	resp := ProductsResponse{Products: make([]Product, 0, n)}
	for i := 0; i < n; i++ {
		id := int64(page*1000 + i)
		resp.Products = append(resp.Products, Product{ID: id, Handle: fmt.Sprintf("p-%d", id)})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeStorefront) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestClient(t *testing.T, srv *httptest.Server, cfg config.ShopifyConfig, opts ...Option) (*Client, string) {
	t.Helper()
	if cfg.PageSize == 0 {
		cfg.PageSize = 250
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	opts = append([]Option{WithScheme("http"), WithRetryBackoff(time.Millisecond)}, opts...)
	return NewClient(cfg, nil, opts...), strings.TrimPrefix(srv.URL, "http://")
}

func TestFetchProducts_StopsOnShortPage(t *testing.T) {
	store := &fakeStorefront{pages: []int{250, 250, 130}}
	srv := httptest.NewServer(store)
	defer srv.Close()

	client, domain := newTestClient(t, srv, config.ShopifyConfig{})
	products, err := client.FetchProducts(context.Background(), domain)

	require.NoError(t, err)
	assert.Len(t, products, 630)
	assert.Equal(t, 3, store.requestCount())
	assert.Equal(t, "/products.json?limit=250&page=1", store.requests[0])
	assert.Equal(t, int64(1000), products[0].ID)
	assert.Equal(t, int64(3129), products[629].ID)
}

func TestFetchProducts_StopsOnEmptyPage(t *testing.T) {
	store := &fakeStorefront{pages: []int{250, 0}}
	srv := httptest.NewServer(store)
	defer srv.Close()

	client, domain := newTestClient(t, srv, config.ShopifyConfig{})
	products, err := client.FetchProducts(context.Background(), domain)

	require.NoError(t, err)
	assert.Len(t, products, 250)
	assert.Equal(t, 2, store.requestCount())
}

func TestFetchProducts_PageDelay(t *testing.T) {
	store := &fakeStorefront{pages: []int{2, 2, 1}}
	srv := httptest.NewServer(store)
	defer srv.Close()

	client, domain := newTestClient(t, srv, config.ShopifyConfig{PageSize: 2, PageDelay: 30 * time.Millisecond})
	start := time.Now()
	products, err := client.FetchProducts(context.Background(), domain)

	require.NoError(t, err)
	assert.Len(t, products, 5)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFetchProducts_PageDelayFollowsSlowPages(t *testing.T) {
	var mu sync.Mutex
	var starts, ends []time.Time
	pages := []int{2, 2, 1}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		time.Sleep(100 * time.Millisecond)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		writeProducts(w, page, pages[page-1])
		mu.Lock()
		ends = append(ends, time.Now())
		mu.Unlock()
	}))
	defer srv.Close()

	client, domain := newTestClient(t, srv, config.ShopifyConfig{PageSize: 2, PageDelay: 80 * time.Millisecond})
	products, err := client.FetchProducts(context.Background(), domain)

	require.NoError(t, err)
	assert.Len(t, products, 5)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 3)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(ends[i-1]), 75*time.Millisecond, "gap before page %d", i+1)
	}
}

func TestFetchProducts_PartialOnServerError(t *testing.T) {
	store := &fakeStorefront{pages: []int{250, 250, 250}, statuses: map[int]int{1: http.StatusBadGateway}}
	srv := httptest.NewServer(store)
	defer srv.Close()

	client, domain := newTestClient(t, srv, config.ShopifyConfig{MaxRetries: 0})
	products, err := client.FetchProducts(context.Background(), domain)

	require.Error(t, err)
	assert.Len(t, products, 250)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Page)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, 1, fe.Attempts)
}

func TestFetchProducts_RetriesTransientErrors(t *testing.T) {
	store := &fakeStorefront{
		pages:    []int{3},
		statuses: map[int]int{0: http.StatusServiceUnavailable, 1: http.StatusTooManyRequests},
	}
	srv := httptest.NewServer(store)
	defer srv.Close()

	reg := metrics.NewRegistry()
	client, domain := newTestClient(t, srv, config.ShopifyConfig{MaxRetries: 2}, WithMetrics(reg))
	products, err := client.FetchProducts(context.Background(), domain)

	require.NoError(t, err)
	assert.Len(t, products, 3)
	assert.Equal(t, 3, store.requestCount())
}

func TestFetchProducts_DoesNotRetryClientErrors(t *testing.T) {
	store := &fakeStorefront{pages: []int{250, 10}, statuses: map[int]int{1: http.StatusForbidden}}
	srv := httptest.NewServer(store)
	defer srv.Close()

	client, domain := newTestClient(t, srv, config.ShopifyConfig{MaxRetries: 3})
	products, err := client.FetchProducts(context.Background(), domain)

	require.Error(t, err)
	assert.Len(t, products, 250)
	assert.Equal(t, 2, store.requestCount())
}

func TestFetchProducts_FallsBackToCollectionFeed(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path != collectionProductsPath {
			http.NotFound(w, r)
			return
		}
		writeProducts(w, 1, 4)
	}))
	defer srv.Close()

	client, domain := newTestClient(t, srv, config.ShopifyConfig{})
	products, err := client.FetchProducts(context.Background(), domain)

	require.NoError(t, err)
	assert.Len(t, products, 4)
	assert.Equal(t, []string{productsPath, collectionProductsPath}, paths)
}

func TestFetchProducts_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products": [`))
	}))
	defer srv.Close()

	client, domain := newTestClient(t, srv, config.ShopifyConfig{MaxRetries: 2})
	products, err := client.FetchProducts(context.Background(), domain)

	require.Error(t, err)
	assert.Empty(t, products)
}

func TestFetchProducts_ContextCanceled(t *testing.T) {
	store := &fakeStorefront{pages: []int{250, 250}}
	srv := httptest.NewServer(store)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, domain := newTestClient(t, srv, config.ShopifyConfig{})
	_, err := client.FetchProducts(ctx, domain)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDecodeProduct(t *testing.T) {
	raw := `{"products":[{
		"id": 42, "title": "Marinière", "handle": "mariniere", "body_html": "<p>Coton</p>",
		"vendor": "Acme", "product_type": "Haut", "tags": "bio, made in france,",
		"updated_at": "2024-03-01T10:00:00+01:00",
		"variants": [{"id": 7, "title": "M", "price": "59.00", "sku": "MAR-M", "available": true},
		             {"id": 8, "title": "L", "price": 61.5, "sku": null, "available": false}],
		"images": [{"src": "https://cdn.example/a.jpg"}]
	}]}`
	var resp ProductsResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	require.Len(t, resp.Products, 1)

	p := resp.Products[0]
	assert.Equal(t, Tags{"bio", "made in france"}, p.Tags)
	assert.Equal(t, Price("59.00"), p.Variants[0].Price)
	assert.Equal(t, Price("61.5"), p.Variants[1].Price)
	assert.Equal(t, 2024, p.UpdatedAt.Year())
	assert.Equal(t, "https://cdn.example/a.jpg", p.Images[0].Src)
}

func TestDecodeProduct_Lenient(t *testing.T) {
	raw := `{"id": 1, "tags": ["a", "b"], "updated_at": "", "variants": [{"price": null}]}`
	var p Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, Tags{"a", "b"}, p.Tags)
	assert.True(t, p.UpdatedAt.IsZero())
	assert.Equal(t, Price(""), p.Variants[0].Price)

	tests := []struct {
		value string
		zero  bool
	}{
		{`"2024-03-01 10:00:00"`, false},
		{`"2024-03-01T10:00:00"`, false},
		{`"2024-03-01T10:00:00+01:00"`, false},
		{`"yesterday"`, true},
		{`1709283600`, true},
		{`null`, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			var p Product
			require.NoError(t, json.Unmarshal([]byte(`{"id": 2, "updated_at": `+tt.value+`}`), &p))
			assert.Equal(t, int64(2), p.ID)
			assert.Equal(t, tt.zero, p.UpdatedAt.IsZero())
		})
	}
}

func TestFetchProducts_OddTimestampKeepsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products": [
			{"id": 1, "handle": "a", "updated_at": "2024-03-01 10:00:00"},
			{"id": 2, "handle": "b", "updated_at": "not a date"},
			{"id": 3, "handle": "c"}
		]}`))
	}))
	defer srv.Close()

	client, domain := newTestClient(t, srv, config.ShopifyConfig{})
	products, err := client.FetchProducts(context.Background(), domain)

	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, 2024, products[0].UpdatedAt.Year())
	assert.True(t, products[1].UpdatedAt.IsZero())
}

func TestProbe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		writeProducts(w, 1, 1)
	})
	shop := httptest.NewServer(mux)
	defer shop.Close()

	notShop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer notShop.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	client, domain := newTestClient(t, shop, config.ShopifyConfig{})
	ok, err := client.Probe(context.Background(), domain)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Probe(context.Background(), strings.TrimPrefix(notShop.URL, "http://"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.Probe(context.Background(), strings.TrimPrefix(broken.URL, "http://"))
	assert.Error(t, err)
}

func TestBackoff(t *testing.T) {
	c := NewClient(config.ShopifyConfig{}, nil)
	assert.Equal(t, time.Second, c.backoff(0, 0))
	assert.Equal(t, 4*time.Second, c.backoff(2, 0))
	assert.Equal(t, 7*time.Second, c.backoff(2, 7*time.Second))
	assert.Equal(t, maxRetryWait, c.backoff(10, 0))
}
