package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/config"
	"github.com/madeinfrance/catalog-sync/internal/repository/postgres"
	"github.com/madeinfrance/catalog-sync/pkg/errors"
)

const pageSize = 100

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/list-products/main.go <brand-slug>")
		fmt.Println("Example: go run cmd/list-products/main.go acme")
		os.Exit(1)
	}
	slug := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx := context.Background()
	db, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)

	brand, err := repos.Brand.GetBySlug(ctx, slug)
	if err != nil {
		if errors.IsNotFound(err) {
			fmt.Fprintf(os.Stderr, "Brand %q not found\n", slug)
		} else {
			fmt.Fprintf(os.Stderr, "Failed to get brand: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("🔍 Products of %s (%s)\n\n", brand.Name, brand.Slug)
	fmt.Printf("%-40s %-50s %10s  %s\n", "NAME", "SLUG", "PRICE", "UPDATED")

	total := 0
	for offset := 0; ; offset += pageSize {
		products, err := repos.Product.ListByBrandID(ctx, brand.ID, pageSize, offset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list products: %v\n", err)
			os.Exit(1)
		}
		for _, p := range products {
			price := "-"
			if p.PriceMin != nil {
				price = p.PriceMin.StringFixed(2)
			}
			locked := ""
			if len(p.LockedFields) > 0 {
				locked = fmt.Sprintf("  🔒 %v", p.LockedFields)
			}
			fmt.Printf("%-40s %-50s %10s  %s%s\n", truncate(p.Name, 40), truncate(p.Slug, 50), price, p.UpdatedAt.Format("2006-01-02 15:04"), locked)
		}
		total += len(products)
		if len(products) < pageSize {
			break
		}
	}

	fmt.Printf("\nTotal: %d product(s)\n", total)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
