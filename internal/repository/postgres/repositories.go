package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/repository"
)

// NewRepositories creates a new set of repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Brand:   NewBrandRepository(db, logger),
		Product: NewProductRepository(db, logger),
	}
}
