package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	LogLevel    string
	Database    DatabaseConfig
	Shopify     ShopifyConfig
	Import      ImportConfig
	Metrics     MetricsConfig
	Server      ServerConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ShopifyConfig controls how public storefront feeds are fetched
type ShopifyConfig struct {
	PageSize       int
	PageDelay      time.Duration // pause between two page requests of the same storefront
	RequestTimeout time.Duration
	MaxRetries     int // retries per page on network errors, 429 and 5xx
	UserAgent      string
}

// ImportConfig controls the multi-brand run
type ImportConfig struct {
	RegistryFile string
	BrandDelay   time.Duration // pause between two brands, on top of PageDelay
	RunTimeout   time.Duration // 0 means no deadline
	SyncInterval time.Duration // ops server periodic import; 0 disables it
}

// MetricsConfig is used to push run metrics at the end of a CLI run
type MetricsConfig struct {
	PushgatewayURL string // empty disables push
	JobName        string
}

type ServerConfig struct {
	Port         string
	AdminKeyHash string // SYNC_ADMIN_KEY_HASH: bcrypt hash guarding the sync trigger routes
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	pageSize, err := strconv.Atoi(getEnvOrViper("SHOPIFY_PAGE_SIZE", "250"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHOPIFY_PAGE_SIZE: %w", err)
	}
	maxRetries, err := strconv.Atoi(getEnvOrViper("SHOPIFY_MAX_RETRIES", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHOPIFY_MAX_RETRIES: %w", err)
	}
	pageDelay, err := durationOrViper("SHOPIFY_PAGE_DELAY", "500ms")
	if err != nil {
		return nil, err
	}
	requestTimeout, err := durationOrViper("SHOPIFY_REQUEST_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	brandDelay, err := durationOrViper("IMPORT_BRAND_DELAY", "500ms")
	if err != nil {
		return nil, err
	}
	runTimeout, err := durationOrViper("IMPORT_RUN_TIMEOUT", "0s")
	if err != nil {
		return nil, err
	}
	syncInterval, err := durationOrViper("IMPORT_SYNC_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "madeinfrance"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Shopify: ShopifyConfig{
			PageSize:       pageSize,
			PageDelay:      pageDelay,
			RequestTimeout: requestTimeout,
			MaxRetries:     maxRetries,
			UserAgent:      getEnvOrViper("SHOPIFY_USER_AGENT", "MadeInFrance-CatalogSync/1.0"),
		},
		Import: ImportConfig{
			RegistryFile: strings.TrimSpace(getEnvOrViper("IMPORT_REGISTRY_FILE", "brands.yaml")),
			BrandDelay:   brandDelay,
			RunTimeout:   runTimeout,
			SyncInterval: syncInterval,
		},
		Metrics: MetricsConfig{
			PushgatewayURL: strings.TrimSpace(getEnvOrViper("METRICS_PUSHGATEWAY_URL", "")),
			JobName:        getEnvOrViper("METRICS_JOB_NAME", "shopify_import"),
		},
		Server: ServerConfig{
			Port:         getEnvOrViper("PORT", "8080"),
			AdminKeyHash: strings.TrimSpace(getEnvOrViper("SYNC_ADMIN_KEY_HASH", "")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Shopify.PageSize <= 0 || c.Shopify.PageSize > 250 {
		return fmt.Errorf("SHOPIFY_PAGE_SIZE must be between 1 and 250, got %d", c.Shopify.PageSize)
	}
	if c.Shopify.MaxRetries < 0 {
		return fmt.Errorf("SHOPIFY_MAX_RETRIES must not be negative")
	}
	if c.Shopify.PageDelay < 0 || c.Import.BrandDelay < 0 || c.Import.RunTimeout < 0 || c.Import.SyncInterval < 0 {
		return fmt.Errorf("delays and timeouts must not be negative")
	}
	if c.Shopify.RequestTimeout <= 0 {
		return fmt.Errorf("SHOPIFY_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func durationOrViper(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrViper(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
