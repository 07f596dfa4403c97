// SPDX-License-Identifier: MIT

// Package catalog defines the product domain model and the seed sources
// that feed the search index.
package catalog

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Product is one catalog entry. Field names match the search index
// document schema.
type Product struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	DiscountPercentage float64 `json:"discountPercentage"`
}

// Validate reports whether p can be indexed.
func (p Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("product: empty id")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("product %s: empty title", p.ID)
	}
	if p.DiscountPercentage < 0 || p.DiscountPercentage > 100 {
		return fmt.Errorf("product %s: discount %.2f out of range [0,100]", p.ID, p.DiscountPercentage)
	}
	return nil
}

// stripMarks removes diacritics after NFKD decomposition, so "Café" and
// "Cafe" slug identically.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug converts a product title into a URL-safe, human-readable slug.
// Example: "Ergonomic Café Chair" → "ergonomic-cafe-chair".
func Slug(title string) string {
	if title == "" {
		return "product"
	}

	s, _, err := transform.String(stripMarks, title)
	if err != nil {
		s = title
	}
	s = strings.ToLower(s)

	var b strings.Builder
	lastWasDash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastWasDash = false
		} else if !lastWasDash {
			b.WriteRune('-')
			lastWasDash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > 50 {
		slug = strings.TrimRight(slug[:50], "-")
	}
	if slug == "" {
		return "product"
	}
	return slug
}

// StableID derives a document ID from the title: the slug plus a short
// hash suffix so renames of punctuation keep distinct products distinct.
// Example: "Ergonomic Café Chair" → "ergonomic-cafe-chair-3fa92b".
func StableID(title string) string {
	sum := sha1.Sum([]byte(title))
	return Slug(title) + "-" + hex.EncodeToString(sum[:])[:6]
}

// Dedupe collapses duplicate IDs, last occurrence wins. Order of first
// occurrence is preserved.
func Dedupe(products []Product) []Product {
	idx := make(map[string]int, len(products))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if i, ok := idx[p.ID]; ok {
			out[i] = p
			continue
		}
		idx[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
