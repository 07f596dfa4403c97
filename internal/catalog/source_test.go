// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestJSONSourceLoad(t *testing.T) {
	dir := t.TempDir()
	seed := `[
		{"id": "p1", "title": "Wireless Mouse", "discountPercentage": 25},
		{"title": "Ergonomic Café Chair", "discountPercentage": 40},
		{"id": "bad", "title": "", "discountPercentage": 10},
		{"id": "p1", "title": "Wireless Mouse v2", "discountPercentage": 30}
	]`
	path := filepath.Join(dir, "seed.json")
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}

	src := NewJSONSource(path)
	products, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// One invalid dropped, one duplicate collapsed (last wins).
	if len(products) != 2 {
		t.Fatalf("Load() returned %d products, want 2", len(products))
	}
	if products[0].ID != "p1" || products[0].DiscountPercentage != 30 {
		t.Errorf("products[0] = %+v, want deduped p1 with discount 30", products[0])
	}
	if products[1].ID == "" {
		t.Error("missing id was not derived")
	}
	if want := StableID("Ergonomic Café Chair"); products[1].ID != want {
		t.Errorf("derived id = %q, want %q", products[1].ID, want)
	}
}

func TestJSONSourceLoadErrors(t *testing.T) {
	src := NewJSONSource(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := src.Load(context.Background()); err == nil {
		t.Error("Load() succeeded on missing file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewJSONSource(path).Load(context.Background()); err == nil {
		t.Error("Load() succeeded on malformed JSON")
	}
}

func TestJSONSourceRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewJSONSource("irrelevant.json")
	if _, err := src.Load(ctx); err == nil {
		t.Error("Load() ignored cancelled context")
	}
}

func TestSQLiteSourceLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.db")

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE products (id TEXT, title TEXT, discount_percentage REAL)`,
		`INSERT INTO products VALUES ('p1', 'Wireless Mouse', 25.0)`,
		`INSERT INTO products VALUES ('', 'Standing Desk', 15.5)`,
		`INSERT INTO products VALUES ('p3', '', 5.0)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	src := NewSQLiteSource(path)
	products, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(products) != 2 {
		t.Fatalf("Load() returned %d products, want 2 (empty title dropped)", len(products))
	}
	if products[0].ID != "p1" || products[0].DiscountPercentage != 25.0 {
		t.Errorf("products[0] = %+v", products[0])
	}
	if want := StableID("Standing Desk"); products[1].ID != want {
		t.Errorf("derived id = %q, want %q", products[1].ID, want)
	}
}

func TestSQLiteSourceMissingFile(t *testing.T) {
	// sqlite creates empty databases on open, so the failure surfaces at
	// query time as a missing table.
	src := NewSQLiteSource(filepath.Join(t.TempDir(), "missing.db"))
	if _, err := src.Load(context.Background()); err == nil {
		t.Error("Load() succeeded without a products table")
	}
}
