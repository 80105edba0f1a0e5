package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/madeinfrance/catalog-sync/internal/domain"
	"github.com/madeinfrance/catalog-sync/internal/shopify"
	"github.com/madeinfrance/catalog-sync/pkg/errors"
)

// ShortDescriptionLength is the rune length of Product.DescriptionShort
const ShortDescriptionLength = 500

// placeholderToken is what the storefront editor leaves behind for broken embeds
const placeholderToken = "[object Object]"

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[\s\x{00A0}]+`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
	angleReplacer = strings.NewReplacer("<", "", ">", "")
)

// CleanDescription turns storefront body HTML into plain text: tags stripped, common entities
// decoded, placeholder removed, whitespace collapsed. The result never contains '<' or '>'.
func CleanDescription(bodyHTML string) string {
	s := tagPattern.ReplaceAllString(bodyHTML, " ")
	s = entityReplacer.Replace(s)
	// entities may have produced new markup
	s = tagPattern.ReplaceAllString(s, " ")
	s = angleReplacer.Replace(s)
	// collapsing can rebuild the placeholder ("[object  Object]") and removing it can leave
	// double spaces, so repeat until stable
	for {
		prev := s
		s = whitespacePattern.ReplaceAllString(s, " ")
		s = strings.ReplaceAll(s, placeholderToken, "")
		if s == prev {
			break
		}
	}
	return strings.TrimSpace(s)
}

// Truncate returns the first n runes of s
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// ProductSlug is the catalog slug of a storefront product
func ProductSlug(brandSlug, handle string) string {
	return brandSlug + "-" + handle
}

// RepresentativeVariant picks the first available variant, else the first one
func RepresentativeVariant(variants []shopify.Variant) *shopify.Variant {
	for i := range variants {
		if variants[i].Available {
			return &variants[i]
		}
	}
	if len(variants) > 0 {
		return &variants[0]
	}
	return nil
}

// RepresentativePrice is the price of RepresentativeVariant; nil when there is none or it is unparsable
func RepresentativePrice(variants []shopify.Variant) *decimal.Decimal {
	v := RepresentativeVariant(variants)
	if v == nil || v.Price == "" {
		return nil
	}
	d, err := decimal.NewFromString(string(v.Price))
	if err != nil {
		return nil
	}
	return &d
}

// Snapshot is the JSON kept in Product.ExternalData
type Snapshot struct {
	Handle      string            `json:"handle"`
	Vendor      string            `json:"vendor"`
	ProductType string            `json:"product_type"`
	Tags        []string          `json:"tags"`
	Variants    []SnapshotVariant `json:"variants"`
	Images      []string          `json:"images"`
	UpdatedAt   *time.Time        `json:"updated_at"`
}

type SnapshotVariant struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	SKU       string `json:"sku"`
	Available bool   `json:"available"`
}

func newSnapshot(p shopify.Product) Snapshot {
	s := Snapshot{
		Handle:      p.Handle,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Tags:        []string(p.Tags),
		Variants:    make([]SnapshotVariant, 0, len(p.Variants)),
		Images:      imageURLs(p.Images),
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	for _, v := range p.Variants {
		s.Variants = append(s.Variants, SnapshotVariant{
			ID:        v.ID,
			Title:     v.Title,
			Price:     string(v.Price),
			SKU:       v.SKU,
			Available: v.Available,
		})
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt.Time
		s.UpdatedAt = &t
	}
	return s
}

// ParseSnapshot decodes Product.ExternalData
func ParseSnapshot(raw []byte) (*Snapshot, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty external data")
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode external data: %w", err)
	}
	return &s, nil
}

func imageURLs(images []shopify.Image) []string {
	urls := make([]string, 0, len(images))
	for _, img := range images {
		if img.Src != "" {
			urls = append(urls, img.Src)
		}
	}
	return urls
}

// Transform maps a storefront product onto the catalog schema. The returned product has no
// ID, Status or LockedFields; those belong to the stored record.
func Transform(brand *domain.Brand, p shopify.Product) (*domain.Product, error) {
	if p.ID == 0 {
		return nil, &errors.ErrValidation{Message: "product has no id", Fields: map[string]string{"id": "required"}}
	}
	if strings.TrimSpace(p.Handle) == "" {
		return nil, &errors.ErrValidation{Message: fmt.Sprintf("product %d has no handle", p.ID), Fields: map[string]string{"handle": "required"}}
	}

	snapshot, err := json.Marshal(newSnapshot(p))
	if err != nil {
		return nil, fmt.Errorf("failed to encode external data: %w", err)
	}

	long := CleanDescription(p.BodyHTML)
	price := RepresentativePrice(p.Variants)
	gallery := imageURLs(p.Images)

	out := &domain.Product{
		BrandID:          brand.ID,
		Name:             p.Title,
		Slug:             ProductSlug(brand.Slug, p.Handle),
		DescriptionShort: Truncate(long, ShortDescriptionLength),
		DescriptionLong:  long,
		GalleryURLs:      gallery,
		ExternalID:       strconv.FormatInt(p.ID, 10),
		ExternalSource:   domain.ExternalSourceShopify,
		ExternalData:     snapshot,
	}
	if price != nil {
		max := *price
		out.PriceMin = price
		out.PriceMax = &max
	}
	if len(gallery) > 0 {
		first := gallery[0]
		out.ImageURL = &first
	}
	return out, nil
}

// applyManaged copies the sync-managed fields of src onto dst, skipping the ones dst has locked.
// External data is always refreshed.
func applyManaged(dst, src *domain.Product) {
	if !dst.IsLocked(domain.FieldName) {
		dst.Name = src.Name
	}
	if !dst.IsLocked(domain.FieldDescriptionLong) {
		dst.DescriptionLong = src.DescriptionLong
	}
	if !dst.IsLocked(domain.FieldDescriptionShort) {
		dst.DescriptionShort = src.DescriptionShort
	}
	if !dst.IsLocked(domain.FieldPrice) {
		dst.PriceMin = src.PriceMin
		dst.PriceMax = src.PriceMax
	}
	if !dst.IsLocked(domain.FieldImageURL) {
		dst.ImageURL = src.ImageURL
	}
	if !dst.IsLocked(domain.FieldGalleryURLs) {
		dst.GalleryURLs = src.GalleryURLs
	}
	dst.Slug = src.Slug
	dst.ExternalData = src.ExternalData
}
