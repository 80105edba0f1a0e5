package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/config"
	"github.com/madeinfrance/catalog-sync/internal/domain"
	"github.com/madeinfrance/catalog-sync/internal/registry"
	"github.com/madeinfrance/catalog-sync/internal/service"
	"github.com/madeinfrance/catalog-sync/internal/shopify"
)

const sampleSize = 5

// Dry run against one storefront: nothing is written to the database.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/test-shopify/main.go <domain> [brand-slug]")
		fmt.Println("Example: go run cmd/test-shopify/main.go www.acme.example acme")
		os.Exit(1)
	}
	domainArg := registry.NormalizeDomain(os.Args[1])
	slug := "preview"
	if len(os.Args) > 2 {
		slug = os.Args[2]
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	client := shopify.NewClient(cfg.Shopify, logger)
	ctx := context.Background()

	fmt.Printf("Testing storefront feed...\n\n")
	fmt.Printf("Domain: %s\n\n", domainArg)

	ok, err := client.Probe(ctx, domainArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Probe failed: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("❌ No public products feed found at /products.json")
		fmt.Println("Please check:")
		fmt.Println("  1. The domain is the storefront host (no path), e.g. 'shop.brand.fr'")
		fmt.Println("  2. The store is on Shopify and its storefront is not password protected")
		os.Exit(1)
	}
	fmt.Println("✅ Products feed found")

	products, err := client.FetchProducts(ctx, domainArg)
	if err != nil {
		fmt.Printf("⚠️  Catalog incomplete: %v\n", err)
	}
	fmt.Printf("Fetched %d product(s)\n\n", len(products))

	brand := &domain.Brand{ID: uuid.Nil, Slug: slug}
	for i, p := range products {
		if i == sampleSize {
			fmt.Printf("... and %d more\n", len(products)-sampleSize)
			break
		}
		out, err := service.Transform(brand, p)
		if err != nil {
			fmt.Printf("%d. ❌ %s: %v\n\n", i+1, p.Handle, err)
			continue
		}
		price := "-"
		if out.PriceMin != nil {
			price = out.PriceMin.StringFixed(2)
		}
		fmt.Printf("%d. %s\n", i+1, out.Name)
		fmt.Printf("   Slug:        %s\n", out.Slug)
		fmt.Printf("   External ID: %s\n", out.ExternalID)
		fmt.Printf("   Price:       %s\n", price)
		fmt.Printf("   Images:      %d\n", len(out.GalleryURLs))
		fmt.Printf("   Description: %s\n\n", service.Truncate(strings.TrimSpace(out.DescriptionShort), 120))
	}
}
