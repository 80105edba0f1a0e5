package service

import (
	"time"

	"github.com/madeinfrance/catalog-sync/internal/domain"
)

// ProductResponse is the JSON view of a synced product
type ProductResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	DescriptionShort string    `json:"description_short"`
	PriceMin         *string   `json:"price_min,omitempty"`
	PriceMax         *string   `json:"price_max,omitempty"`
	ImageURL         *string   `json:"image_url,omitempty"`
	GalleryURLs      []string  `json:"gallery_urls"`
	ExternalID       string    `json:"external_id"`
	ExternalSource   string    `json:"external_source"`
	Status           string    `json:"status"`
	LockedFields     []string  `json:"locked_fields,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func NewProductResponse(p *domain.Product) ProductResponse {
	resp := ProductResponse{
		ID:               p.ID.String(),
		Name:             p.Name,
		Slug:             p.Slug,
		DescriptionShort: p.DescriptionShort,
		ImageURL:         p.ImageURL,
		GalleryURLs:      p.GalleryURLs,
		ExternalID:       p.ExternalID,
		ExternalSource:   p.ExternalSource,
		Status:           p.Status.String(),
		LockedFields:     p.LockedFields,
		UpdatedAt:        p.UpdatedAt,
	}
	if resp.GalleryURLs == nil {
		resp.GalleryURLs = []string{}
	}
	// prices are rendered with two decimals
	if p.PriceMin != nil {
		s := p.PriceMin.StringFixed(2)
		resp.PriceMin = &s
	}
	if p.PriceMax != nil {
		s := p.PriceMax.StringFixed(2)
		resp.PriceMax = &s
	}
	return resp
}

// SyncBrandRequest is the optional body of POST /v1/sync/:slug
type SyncBrandRequest struct {
	Domain string `json:"domain"`
}

// BrandReportResponse is the JSON view of a BrandReport
type BrandReportResponse struct {
	Slug       string `json:"slug"`
	Domain     string `json:"domain"`
	Fetched    int    `json:"fetched"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Errored    int    `json:"errored"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`
	FetchError string `json:"fetch_error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func NewBrandReportResponse(r BrandReport) BrandReportResponse {
	resp := BrandReportResponse{
		Slug:       r.Slug,
		Domain:     r.Domain,
		Fetched:    r.Fetched,
		Created:    r.Created,
		Updated:    r.Updated,
		Errored:    r.Errored,
		Skipped:    r.Skipped,
		SkipReason: r.SkipReason,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.FetchErr != nil {
		resp.FetchError = r.FetchErr.Error()
	}
	return resp
}
