package postgres

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/domain"
	"github.com/madeinfrance/catalog-sync/pkg/errors"
)

type brandRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBrandRepository creates a new brand repository
func NewBrandRepository(db *sql.DB, logger *zap.Logger) *brandRepository {
	return &brandRepository{db: db, logger: logger}
}

func (r *brandRepository) GetBySlug(ctx context.Context, slug string) (*domain.Brand, error) {
	query := `
		SELECT id, slug, name, website, created_at, updated_at
		FROM brands
		WHERE slug = $1
	`
	var b domain.Brand
	var website sql.NullString
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&b.ID, &b.Slug, &b.Name, &website, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "brand", ID: slug}
	}
	if err != nil {
		r.logger.Error("Failed to get brand by slug", zap.Error(err), zap.String("slug", slug))
		return nil, err
	}
	if website.Valid {
		b.Website = &website.String
	}
	return &b, nil
}

func (r *brandRepository) ListWithWebsite(ctx context.Context) ([]*domain.Brand, error) {
	query := `
		SELECT id, slug, name, website, created_at, updated_at
		FROM brands
		WHERE website IS NOT NULL AND website <> ''
		ORDER BY slug ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list brands with website", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Brand
	for rows.Next() {
		var b domain.Brand
		var website sql.NullString
		if err := rows.Scan(&b.ID, &b.Slug, &b.Name, &website, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if website.Valid {
			b.Website = &website.String
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
