// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	xglog "github.com/koski/dealsearch/internal/log"
)

// Source yields products for indexing. Implementations must be safe for
// repeated Load calls.
type Source interface {
	// Name identifies the source in logs and sync status.
	Name() string
	// Load reads all products. Entries that fail validation are dropped,
	// not fatal; Load errors only when the source itself is unusable.
	Load(ctx context.Context) ([]Product, error)
}

// JSONSource reads a JSON array of products from a file.
type JSONSource struct {
	Path string
}

// NewJSONSource returns a source backed by the JSON file at path.
func NewJSONSource(path string) *JSONSource {
	return &JSONSource{Path: path}
}

// Name implements Source.
func (s *JSONSource) Name() string { return "json:" + s.Path }

// Load implements Source.
func (s *JSONSource) Load(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", s.Path, err)
	}

	var raw []Product
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", s.Path, err)
	}

	return sanitize(raw, s.Name()), nil
}

// sanitize derives missing IDs, drops invalid entries and collapses
// duplicates. Shared by all sources.
func sanitize(raw []Product, source string) []Product {
	logger := xglog.WithComponent("catalog")

	out := make([]Product, 0, len(raw))
	dropped := 0
	for _, p := range raw {
		if p.ID == "" && p.Title != "" {
			p.ID = StableID(p.Title)
		}
		if err := p.Validate(); err != nil {
			dropped++
			logger.Warn().
				Err(err).
				Str("source", source).
				Msg("dropping invalid product")
			continue
		}
		out = append(out, p)
	}

	deduped := Dedupe(out)
	if dropped > 0 || len(deduped) < len(out) {
		logger.Info().
			Str("event", "catalog.sanitize").
			Str("source", source).
			Int("loaded", len(raw)).
			Int("dropped", dropped).
			Int("duplicates", len(out)-len(deduped)).
			Msg("sanitized product seed")
	}
	return deduped
}
