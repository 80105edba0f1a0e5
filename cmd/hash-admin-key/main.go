package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/madeinfrance/catalog-sync/internal/api/middleware"
)

func main() {
	keyFlag := flag.String("key", "", "Admin key to hash (a random one is generated when empty)")
	flag.Parse()

	apiKey := strings.TrimSpace(*keyFlag)
	if apiKey == "" && flag.NArg() >= 1 {
		apiKey = strings.TrimSpace(flag.Arg(0))
	}
	if apiKey == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
			os.Exit(1)
		}
		apiKey = hex.EncodeToString(buf)
	}

	// Trimmed so the hash matches what the server receives (AdminKeyMiddleware trims the Bearer token)
	hash, err := middleware.HashAPIKey(apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash admin key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Admin key hashed\n\n")
	fmt.Printf("Admin Key: %s\n", apiKey)
	fmt.Printf("SYNC_ADMIN_KEY_HASH=%s\n", hash)
	fmt.Printf("\n⚠️  IMPORTANT: Save this key securely! Only the hash goes into the server environment.\n")
	fmt.Printf("\nUse it in the Authorization header of the sync routes:\n")
	fmt.Printf("Authorization: Bearer %s\n", apiKey)
}
