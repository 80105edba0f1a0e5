package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/domain"
	"github.com/madeinfrance/catalog-sync/pkg/errors"
)

const productColumns = `id, brand_id, name, slug, description_short, description_long, price_min, price_max,
		image_url, gallery_urls, external_id, external_source, external_data, status, locked_fields,
		created_at, updated_at`

type productRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB, logger *zap.Logger) *productRepository {
	return &productRepository{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var priceMin, priceMax decimal.NullDecimal
	var imageURL, externalID, externalSource sql.NullString
	var externalData []byte
	var status string
	err := row.Scan(
		&p.ID, &p.BrandID, &p.Name, &p.Slug, &p.DescriptionShort, &p.DescriptionLong,
		&priceMin, &priceMax, &imageURL, pq.Array(&p.GalleryURLs),
		&externalID, &externalSource, &externalData, &status, pq.Array(&p.LockedFields),
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if priceMin.Valid {
		p.PriceMin = &priceMin.Decimal
	}
	if priceMax.Valid {
		p.PriceMax = &priceMax.Decimal
	}
	if imageURL.Valid {
		p.ImageURL = &imageURL.String
	}
	p.ExternalID = externalID.String
	p.ExternalSource = externalSource.String
	if len(externalData) > 0 {
		p.ExternalData = externalData
	}
	p.Status = domain.ProductStatus(status)
	return &p, nil
}

func (r *productRepository) GetByExternalID(ctx context.Context, brandID uuid.UUID, source, externalID string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE brand_id = $1 AND external_source = $2 AND external_id = $3
	`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, brandID, source, externalID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product", ID: source + ":" + externalID}
	}
	if err != nil {
		r.logger.Error("Failed to get product by external id", zap.Error(err),
			zap.String("brand_id", brandID.String()), zap.String("external_id", externalID))
		return nil, err
	}
	return p, nil
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	if !p.Status.IsValid() {
		return &errors.ErrValidation{Message: "invalid product status", Fields: map[string]string{"status": string(p.Status)}}
	}
	now := time.Now()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.BrandID, p.Name, p.Slug, p.DescriptionShort, p.DescriptionLong,
		nullDecimal(p.PriceMin), nullDecimal(p.PriceMax), p.ImageURL, pq.Array(nonNil(p.GalleryURLs)),
		p.ExternalID, p.ExternalSource, jsonb(p.ExternalData), string(p.Status), pq.Array(nonNil(p.LockedFields)),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create product", zap.Error(err), zap.String("slug", p.Slug))
		return err
	}
	return nil
}

// Update overwrites every column except id, brand_id, external keys and created_at
func (r *productRepository) Update(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, slug = $3, description_short = $4, description_long = $5,
			price_min = $6, price_max = $7, image_url = $8, gallery_urls = $9,
			external_data = $10, status = $11, locked_fields = $12, updated_at = $13
		WHERE id = $1
	`
	p.UpdatedAt = time.Now()

	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Slug, p.DescriptionShort, p.DescriptionLong,
		nullDecimal(p.PriceMin), nullDecimal(p.PriceMax), p.ImageURL, pq.Array(nonNil(p.GalleryURLs)),
		jsonb(p.ExternalData), string(p.Status), pq.Array(nonNil(p.LockedFields)), p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update product", zap.Error(err), zap.String("product_id", p.ID.String()))
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &errors.ErrNotFound{Resource: "product", ID: p.ID.String()}
	}
	return nil
}

func (r *productRepository) UpdateGallery(ctx context.Context, id uuid.UUID, galleryURLs []string) error {
	query := `
		UPDATE products
		SET gallery_urls = $2, updated_at = $3
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, pq.Array(nonNil(galleryURLs)), time.Now())
	if err != nil {
		r.logger.Error("Failed to update product gallery", zap.Error(err), zap.String("product_id", id.String()))
		return err
	}
	return nil
}

func (r *productRepository) ListByExternalSource(ctx context.Context, source string) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE external_source = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, source)
}

func (r *productRepository) ListByBrandID(ctx context.Context, brandID uuid.UUID, limit, offset int) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE brand_id = $1
		ORDER BY name ASC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, brandID, limit, offset)
}

func (r *productRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// jsonb passes JSON as text; lib/pq would send []byte as bytea
func jsonb(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
