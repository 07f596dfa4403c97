// SPDX-License-Identifier: MIT

package catalog

import (
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Wireless Mouse", "wireless-mouse"},
		{"diacritics", "Ergonomic Café Chair", "ergonomic-cafe-chair"},
		{"umlauts", "Bürostuhl Größe L", "burostuhl-grosse-l"},
		{"punctuation", "50% off!! Deal (today)", "50-off-deal-today"},
		{"leading trailing", "  --Mixed--  ", "mixed"},
		{"empty", "", "product"},
		{"only symbols", "!!!", "product"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.title); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSlugCapsLength(t *testing.T) {
	long := strings.Repeat("very long product title ", 10)
	slug := Slug(long)
	if len(slug) > 50 {
		t.Errorf("Slug length = %d, want <= 50", len(slug))
	}
	if strings.HasSuffix(slug, "-") {
		t.Errorf("Slug %q ends with dash", slug)
	}
}

func TestStableIDIsDeterministic(t *testing.T) {
	a := StableID("Wireless Mouse")
	b := StableID("Wireless Mouse")
	if a != b {
		t.Errorf("StableID not deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "wireless-mouse-") {
		t.Errorf("StableID = %q, want wireless-mouse- prefix", a)
	}
	if len(a) != len("wireless-mouse-")+6 {
		t.Errorf("StableID = %q, want 6-char hash suffix", a)
	}
}

func TestStableIDDistinguishesTitles(t *testing.T) {
	// Same slug, different raw titles. The hash suffix must differ.
	a := StableID("Wireless Mouse!")
	b := StableID("Wireless: Mouse")
	if a == b {
		t.Errorf("StableID collision for distinct titles: %q", a)
	}
}

func TestProductValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Product
		wantErr bool
	}{
		{"valid", Product{ID: "p1", Title: "Mouse", DiscountPercentage: 12.5}, false},
		{"zero discount", Product{ID: "p1", Title: "Mouse"}, false},
		{"full discount", Product{ID: "p1", Title: "Mouse", DiscountPercentage: 100}, false},
		{"empty id", Product{Title: "Mouse"}, true},
		{"empty title", Product{ID: "p1", Title: "   "}, true},
		{"negative discount", Product{ID: "p1", Title: "Mouse", DiscountPercentage: -1}, true},
		{"overshoot discount", Product{ID: "p1", Title: "Mouse", DiscountPercentage: 101}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDedupeLastWins(t *testing.T) {
	in := []Product{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "keep"},
		{ID: "a", Title: "second"},
	}
	got := Dedupe(in)
	if len(got) != 2 {
		t.Fatalf("Dedupe returned %d products, want 2", len(got))
	}
	if got[0].ID != "a" || got[0].Title != "second" {
		t.Errorf("Dedupe[0] = %+v, want id a with last title", got[0])
	}
	if got[1].ID != "b" {
		t.Errorf("Dedupe[1] = %+v, want id b", got[1])
	}
}
