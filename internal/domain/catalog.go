package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExternalSourceShopify marks products imported from a Shopify storefront feed
const ExternalSourceShopify = "shopify"

// Brand represents a French company/label listed in the catalog
type Brand struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	Website   *string // public site, probed by the storefront scanner
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is the catalog entity synchronized from an external storefront
type Product struct {
	ID               uuid.UUID
	BrandID          uuid.UUID
	Name             string
	Slug             string
	DescriptionShort string
	DescriptionLong  string
	PriceMin         *decimal.Decimal
	PriceMax         *decimal.Decimal
	ImageURL         *string
	GalleryURLs      []string
	ExternalID       string
	ExternalSource   string
	ExternalData     json.RawMessage // JSONB snapshot of the storefront record
	Status           ProductStatus
	LockedFields     []string // sync-managed fields an admin pinned; see Field* constants
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsLocked reports whether the synchronizer must leave field untouched
func (p *Product) IsLocked(field string) bool {
	for _, f := range p.LockedFields {
		if f == field {
			return true
		}
	}
	return false
}
