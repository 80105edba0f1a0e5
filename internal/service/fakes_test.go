package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/madeinfrance/catalog-sync/internal/domain"
	"github.com/madeinfrance/catalog-sync/internal/repository"
	"github.com/madeinfrance/catalog-sync/internal/shopify"
	"github.com/madeinfrance/catalog-sync/pkg/errors"
)

type fakeBrandRepo struct {
	brands map[string]*domain.Brand
	err    error
}

func newFakeBrandRepo(slugs ...string) *fakeBrandRepo {
	r := &fakeBrandRepo{brands: map[string]*domain.Brand{}}
	for _, s := range slugs {
		r.brands[s] = &domain.Brand{ID: uuid.New(), Slug: s, Name: s}
	}
	return r
}

func (r *fakeBrandRepo) GetBySlug(_ context.Context, slug string) (*domain.Brand, error) {
	if r.err != nil {
		return nil, r.err
	}
	b, ok := r.brands[slug]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "brand", ID: slug}
	}
	return b, nil
}

func (r *fakeBrandRepo) ListWithWebsite(_ context.Context) ([]*domain.Brand, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*domain.Brand
	for _, b := range r.brands {
		if b.Website != nil {
			out = append(out, b)
		}
	}
	return out, nil
}

// fakeProductRepo mimics the unique indexes of the products table
type fakeProductRepo struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*domain.Product
	createErr error
	updateErr error
	failSlugs map[string]bool
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{byID: map[uuid.UUID]*domain.Product{}, failSlugs: map[string]bool{}}
}

func clone(p *domain.Product) *domain.Product {
	c := *p
	c.GalleryURLs = append([]string(nil), p.GalleryURLs...)
	c.LockedFields = append([]string(nil), p.LockedFields...)
	c.ExternalData = append([]byte(nil), p.ExternalData...)
	return &c
}

func (r *fakeProductRepo) GetByExternalID(_ context.Context, brandID uuid.UUID, source, externalID string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.BrandID == brandID && p.ExternalSource == source && p.ExternalID == externalID {
			return clone(p), nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "product", ID: externalID}
}

func (r *fakeProductRepo) checkSlug(p *domain.Product) error {
	if r.failSlugs[p.Slug] {
		return fmt.Errorf("write failed for %s", p.Slug)
	}
	for id, other := range r.byID {
		if id != p.ID && other.Slug == p.Slug {
			return fmt.Errorf("duplicate key value violates unique constraint \"products_slug_key\"")
		}
	}
	return nil
}

func (r *fakeProductRepo) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if err := r.checkSlug(p); err != nil {
		return err
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.byID[p.ID] = clone(p)
	return nil
}

func (r *fakeProductRepo) Update(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.byID[p.ID]; !ok {
		return &errors.ErrNotFound{Resource: "product", ID: p.ID.String()}
	}
	if err := r.checkSlug(p); err != nil {
		return err
	}
	p.UpdatedAt = time.Now()
	r.byID[p.ID] = clone(p)
	return nil
}

func (r *fakeProductRepo) UpdateGallery(_ context.Context, id uuid.UUID, urls []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	p.GalleryURLs = append([]string(nil), urls...)
	return nil
}

func (r *fakeProductRepo) ListByExternalSource(_ context.Context, source string) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.byID {
		if p.ExternalSource == source {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (r *fakeProductRepo) ListByBrandID(_ context.Context, brandID uuid.UUID, limit, offset int) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.byID {
		if p.BrandID == brandID {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (r *fakeProductRepo) all() []*domain.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.byID {
		out = append(out, clone(p))
	}
	return out
}

func newRepos(brands *fakeBrandRepo, products *fakeProductRepo) *repository.Repositories {
	return &repository.Repositories{Brand: brands, Product: products}
}

// fakeFetcher returns canned catalogs per domain
type fakeFetcher struct {
	catalogs map[string][]shopify.Product
	errs     map[string]error
	delay    time.Duration // simulated storefront latency per brand
	calls    []string
}

func (f *fakeFetcher) FetchProducts(_ context.Context, domain string) ([]shopify.Product, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.calls = append(f.calls, domain)
	return f.catalogs[domain], f.errs[domain]
}

func widget() shopify.Product {
	return shopify.Product{
		ID:       1,
		Title:    "Widget",
		Handle:   "widget",
		BodyHTML: "<p>Nice</p>",
		Variants: []shopify.Variant{{ID: 11, Price: "9.99", Available: true}},
		Images:   []shopify.Image{{Src: "http://x/img.jpg"}},
	}
}
