package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/config"
	"github.com/madeinfrance/catalog-sync/internal/logging"
	"github.com/madeinfrance/catalog-sync/internal/metrics"
	"github.com/madeinfrance/catalog-sync/internal/registry"
	"github.com/madeinfrance/catalog-sync/internal/repository"
	"github.com/madeinfrance/catalog-sync/internal/repository/postgres"
	"github.com/madeinfrance/catalog-sync/internal/service"
	"github.com/madeinfrance/catalog-sync/internal/shopify"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run cmd/import-shopify/main.go                          import every brand of the registry")
	fmt.Println("  go run cmd/import-shopify/main.go <brand-slug> <domain>    import a single brand")
	fmt.Println("  go run cmd/import-shopify/main.go --scan [--out brands.yaml]")
	fmt.Println("  go run cmd/import-shopify/main.go --update-gallery")
	fmt.Println()
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() (code int) {
	registryFlag := flag.String("registry", "", "Brand registry YAML file (default IMPORT_REGISTRY_FILE)")
	scanFlag := flag.Bool("scan", false, "Probe brand websites for Shopify storefronts instead of importing")
	outFlag := flag.String("out", "", "With --scan: write detected storefronts as a registry file")
	galleryFlag := flag.Bool("update-gallery", false, "Rebuild gallery_urls of synced products from their stored snapshot")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 0 && flag.NArg() != 2 {
		usage()
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Import aborted by panic", zap.Any("panic", r))
			fmt.Fprintf(os.Stderr, "Import aborted: %v\n", r)
			code = 1
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Import.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Import.RunTimeout)
		defer cancel()
	}

	db, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	reg := metrics.NewRegistry()
	client := shopify.NewClient(cfg.Shopify, logger, shopify.WithMetrics(reg))
	synchronizer := service.NewCatalogSynchronizer(repos, reg, logger)

	switch {
	case *scanFlag:
		return runScan(ctx, repos.Brand, client, *outFlag, logger)
	case *galleryFlag:
		return runGallery(ctx, synchronizer)
	}

	var entries []registry.Entry
	if flag.NArg() == 2 {
		entries = []registry.Entry{{Slug: flag.Arg(0), Domain: registry.NormalizeDomain(flag.Arg(1))}}
	} else {
		path := cfg.Import.RegistryFile
		if *registryFlag != "" {
			path = *registryFlag
		}
		entries, err = registry.LoadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load brand registry: %v\n", err)
			return 1
		}
		if len(entries) == 0 {
			fmt.Printf("Registry %s lists no brands, nothing to import.\n", path)
			return 0
		}
	}

	fmt.Printf("🔄 Importing %d brand(s) from Shopify storefronts...\n\n", len(entries))
	importer := service.NewImporter(client, synchronizer, cfg.Import.BrandDelay, reg, os.Stdout, logger)
	summary := importer.Run(ctx, entries)
	service.PrintSummary(os.Stdout, summary)

	if cfg.Metrics.PushgatewayURL != "" {
		if err := reg.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName); err != nil {
			logger.Warn("Failed to push metrics", zap.Error(err))
		}
	}
	return 0
}

func runScan(ctx context.Context, brands repository.BrandRepository, prober service.StorefrontProber, out string, logger *zap.Logger) int {
	fmt.Println("🔍 Probing brand websites for Shopify storefronts...")
	start := time.Now()
	results, err := service.NewScanner(brands, prober, 0, logger).Scan(ctx)
	if err != nil && results == nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		return 1
	}

	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Printf("  ⚠️  %-30s %s (%v)\n", r.Slug, r.Domain, r.Err)
		case r.Shopify:
			fmt.Printf("  ✅ %-30s %s\n", r.Slug, r.Domain)
		default:
			fmt.Printf("  -  %-30s %s\n", r.Slug, r.Domain)
		}
	}
	entries := service.ShopifyEntries(results)
	fmt.Printf("\n%d of %d brand websites are Shopify storefronts (%s)\n", len(entries), len(results), time.Since(start).Round(time.Millisecond))
	if err != nil {
		fmt.Printf("Scan interrupted: %v\n", err)
	}

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", out, err)
			return 1
		}
		defer f.Close()
		if err := registry.Write(f, entries); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write registry: %v\n", err)
			return 1
		}
		fmt.Printf("Registry written to %s\n", out)
	}
	return 0
}

func runGallery(ctx context.Context, synchronizer *service.CatalogSynchronizer) int {
	fmt.Println("🖼️  Rebuilding product galleries from stored snapshots...")
	report, err := synchronizer.BackfillGallery(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gallery backfill failed: %v\n", err)
		return 1
	}
	fmt.Println()
	fmt.Println("========================================")
	fmt.Println("  Gallery Summary")
	fmt.Println("========================================")
	fmt.Printf("Products scanned:   %d\n", report.Scanned)
	fmt.Printf("Galleries updated:  %d\n", report.Updated)
	fmt.Printf("Unchanged:          %d\n", report.Unchanged)
	fmt.Printf("Errors:             %d\n", report.Errored)
	return 0
}
