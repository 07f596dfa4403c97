// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHolderSetNotifiesListeners(t *testing.T) {
	first := &AppConfig{SalesLimit: 1}
	second := &AppConfig{SalesLimit: 2}

	h := NewHolder(first)

	var gotOld, gotNew *AppConfig
	h.OnChange(func(old, new *AppConfig) {
		gotOld, gotNew = old, new
	})

	h.Set(second)

	if h.Get() != second {
		t.Error("Get() did not return the swapped config")
	}
	if gotOld != first || gotNew != second {
		t.Error("listener did not receive old and new configs")
	}
}

func TestHolderReloadKeepsOldOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("search:\n  salesLimit: 42\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DEALSEARCH_DATA", dir)
	t.Setenv("DEALSEARCH_MEILI_URL", "http://meili:7700")

	loader := &Loader{FilePath: path}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	h := NewHolder(cfg)

	// Break the file, then reload. The holder must keep the old config.
	if err := os.WriteFile(path, []byte("search:\n  salesLimit: 9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(loader); err == nil {
		t.Fatal("Reload() accepted invalid config")
	}
	if h.Get().SalesLimit != 42 {
		t.Errorf("SalesLimit = %d after failed reload, want 42", h.Get().SalesLimit)
	}

	// Fix the file. The reload must apply.
	if err := os.WriteFile(path, []byte("search:\n  salesLimit: 77\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(loader); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if h.Get().SalesLimit != 77 {
		t.Errorf("SalesLimit = %d after reload, want 77", h.Get().SalesLimit)
	}
}
