package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/config"
	"github.com/madeinfrance/catalog-sync/internal/metrics"
	"github.com/madeinfrance/catalog-sync/internal/registry"
)

const (
	productsPath           = "/products.json"
	collectionProductsPath = "/collections/all/products.json"

	maxRetryWait = 30 * time.Second
)

// Client reads the public, unauthenticated products feed of Shopify storefronts
type Client struct {
	scheme       string
	pageSize     int
	pageDelay    time.Duration
	maxRetries   int
	retryBackoff time.Duration
	userAgent    string
	httpClient   *http.Client
	metrics      *metrics.Registry
	logger       *zap.Logger
}

type Option func(*Client)

// WithScheme overrides https, e.g. to target an httptest server
func WithScheme(scheme string) Option {
	return func(c *Client) { c.scheme = scheme }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryBackoff sets the base of the exponential backoff between retries of a page
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) { c.retryBackoff = d }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a storefront feed client
func NewClient(cfg config.ShopifyConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 250
	}
	c := &Client{
		scheme:       "https",
		pageSize:     pageSize,
		pageDelay:    cfg.PageDelay,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: time.Second,
		userAgent:    cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchError describes the page request that ended a storefront fetch early
type FetchError struct {
	Domain     string
	Page       int
	StatusCode int // 0 when no HTTP response was received
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s page %d: status %d after %d attempt(s): %v", e.Domain, e.Page, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s page %d after %d attempt(s): %v", e.Domain, e.Page, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchProducts pages through a storefront's feed until a short or empty page.
// On failure it returns the products accumulated so far together with a *FetchError,
// so a nil error always means the whole catalog was read.
func (c *Client) FetchProducts(ctx context.Context, domain string) ([]Product, error) {
	domain = registry.NormalizeDomain(domain)
	path := productsPath

	var all []Product
	requested := false
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return all, &FetchError{Domain: domain, Page: page, Err: err}
		}
		// the pause runs from the end of one request to the start of the next
		if requested && c.pageDelay > 0 {
			if err := sleep(ctx, c.pageDelay); err != nil {
				return all, &FetchError{Domain: domain, Page: page, Err: err}
			}
		}
		requested = true

		products, err := c.fetchPage(ctx, domain, path, page)
		if err != nil {
			var fe *FetchError
			if page == 1 && path == productsPath && errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound {
				c.logger.Info("Products feed not found, falling back to collection feed", zap.String("domain", domain))
				path = collectionProductsPath
				page = 0
				continue
			}
			return all, err
		}

		all = append(all, products...)
		c.logger.Debug("Fetched storefront page",
			zap.String("domain", domain),
			zap.Int("page", page),
			zap.Int("products", len(products)),
		)
		if len(products) < c.pageSize {
			return all, nil
		}
	}
}

// fetchPage requests one page, retrying network errors, 429 and 5xx up to maxRetries times
func (c *Client) fetchPage(ctx context.Context, domain, path string, page int) ([]Product, error) {
	for attempt := 0; ; attempt++ {
		products, status, retryAfter, err := c.doPage(ctx, domain, path, page)
		if err == nil {
			c.metrics.AddFetched(len(products))
			return products, nil
		}

		ferr := &FetchError{Domain: domain, Page: page, StatusCode: status, Attempts: attempt + 1, Err: err}
		if !isRetryable(ctx, status, err) || attempt >= c.maxRetries {
			return nil, ferr
		}

		wait := c.backoff(attempt, retryAfter)
		c.logger.Warn("Storefront page request failed, retrying",
			zap.String("domain", domain),
			zap.Int("page", page),
			zap.Int("status", status),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := sleep(ctx, wait); err != nil {
			ferr.Err = err
			return nil, ferr
		}
	}
}

func (c *Client) doPage(ctx context.Context, domain, path string, page int) (products []Product, status int, retryAfter time.Duration, err error) {
	u := c.pageURL(domain, path, c.pageSize, page)

	start := time.Now()
	resp, err := c.get(ctx, u)
	if err != nil {
		c.metrics.ObservePage(0, time.Since(start))
		return nil, 0, 0, err
	}
	defer resp.Body.Close()
	c.metrics.ObservePage(resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")),
			fmt.Errorf("storefront returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ProductsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("failed to decode products: %w", err)
	}
	return out.Products, resp.StatusCode, 0, nil
}

// Probe reports whether domain serves a Shopify products feed
func (c *Client) Probe(ctx context.Context, domain string) (bool, error) {
	domain = registry.NormalizeDomain(domain)
	resp, err := c.get(ctx, c.pageURL(domain, productsPath, 1, 0))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, fmt.Errorf("storefront returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var body struct {
		Products *[]json.RawMessage `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, nil
	}
	return body.Products != nil, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}

func (c *Client) pageURL(domain, path string, limit, page int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	u := url.URL{Scheme: c.scheme, Host: domain, Path: path, RawQuery: q.Encode()}
	return u.String()
}

func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	wait := retryAfter
	if wait <= 0 {
		wait = c.retryBackoff << attempt
	}
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	return wait
}

func isRetryable(ctx context.Context, status int, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if status == 0 {
		return err != nil
	}
	return status == http.StatusTooManyRequests || status >= 500
}

func parseRetryAfter(v string) time.Duration {
	if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
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
