// Package registry maps internal brand slugs to the storefront domains they are imported from.
package registry

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/madeinfrance/catalog-sync/pkg/errors"
)

// Entry links a brand of the catalog to its storefront
type Entry struct {
	Slug   string `yaml:"slug"`
	Domain string `yaml:"domain"`
}

type file struct {
	Brands []Entry `yaml:"brands"`
}

// LoadFile reads a registry YAML file
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates registry entries. Domains are normalised to bare hostnames.
func Load(r io.Reader) ([]Entry, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}

	seen := make(map[string]bool, len(doc.Brands))
	entries := make([]Entry, 0, len(doc.Brands))
	for i, e := range doc.Brands {
		e.Slug = strings.TrimSpace(e.Slug)
		e.Domain = NormalizeDomain(e.Domain)
		if e.Slug == "" {
			return nil, invalidEntry(fmt.Sprintf("registry entry %d: slug is required", i), "slug")
		}
		if e.Domain == "" {
			return nil, invalidEntry(fmt.Sprintf("registry entry %q: domain is required", e.Slug), "domain")
		}
		if seen[e.Slug] {
			return nil, invalidEntry(fmt.Sprintf("registry entry %q: duplicate slug", e.Slug), "slug")
		}
		seen[e.Slug] = true
		entries = append(entries, e)
	}
	return entries, nil
}

func invalidEntry(msg, field string) error {
	return &errors.ErrValidation{Message: msg, Fields: map[string]string{field: "invalid"}}
}

// Write encodes entries in the format Load reads
func Write(w io.Writer, entries []Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file{Brands: entries}); err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	return enc.Close()
}

// NormalizeDomain strips scheme, path and trailing slashes from a storefront address
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}
