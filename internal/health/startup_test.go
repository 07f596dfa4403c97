// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koski/dealsearch/internal/config"
)

func validStartupConfig(t *testing.T) config.AppConfig {
	t.Helper()
	return config.AppConfig{
		DataDir:       t.TempDir(),
		ListenAddr:    ":8080",
		MetricsListen: ":9090",
		MeiliURL:      "http://127.0.0.1:7700",
	}
}

func TestPerformStartupChecks_Valid(t *testing.T) {
	cfg := validStartupConfig(t)
	err := PerformStartupChecks(context.Background(), cfg)
	assert.NoError(t, err)
}

func TestPerformStartupChecks_CreatesDataDir(t *testing.T) {
	cfg := validStartupConfig(t)
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "data")

	err := PerformStartupChecks(context.Background(), cfg)
	require.NoError(t, err)

	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPerformStartupChecks_DataDirIsFile(t *testing.T) {
	cfg := validStartupConfig(t)
	path := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	cfg.DataDir = path

	err := PerformStartupChecks(context.Background(), cfg)
	assert.Error(t, err)
}

func TestPerformStartupChecks_BadListenAddr(t *testing.T) {
	cfg := validStartupConfig(t)
	cfg.ListenAddr = "no-port-here"

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen address")
}

func TestPerformStartupChecks_BadMetricsPort(t *testing.T) {
	cfg := validStartupConfig(t)
	cfg.MetricsListen = ":99999"

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics")
}

func TestPerformStartupChecks_BadEngineScheme(t *testing.T) {
	cfg := validStartupConfig(t)
	cfg.MeiliURL = "ftp://127.0.0.1:7700"

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestPerformStartupChecks_SeedFile(t *testing.T) {
	cfg := validStartupConfig(t)

	// Missing seed file fails.
	cfg.SeedPath = filepath.Join(t.TempDir(), "missing.json")
	err := PerformStartupChecks(context.Background(), cfg)
	assert.Error(t, err)

	// Readable seed file passes.
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte("[]"), 0600))
	cfg.SeedPath = seed
	err = PerformStartupChecks(context.Background(), cfg)
	assert.NoError(t, err)
}
