// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/koski/dealsearch/internal/config"
	"github.com/koski/dealsearch/internal/log"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}

	if err := checkListenAddr(logger, "api", cfg.ListenAddr); err != nil {
		return err
	}
	if cfg.MetricsListen != "" {
		if err := checkListenAddr(logger, "metrics", cfg.MetricsListen); err != nil {
			return err
		}
	}

	if err := checkEngineURL(logger, cfg.MeiliURL); err != nil {
		return err
	}

	if cfg.SeedPath != "" {
		if err := checkFileReadable(cfg.SeedPath); err != nil {
			return fmt.Errorf("seed file error: %w", err)
		}
		logger.Info().Str("path", cfg.SeedPath).Msg("✓ Seed file is readable")
	}

	logger.Info().Msg("✅ All startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	// MkdirAll returns nil if the directory already exists.
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("failed to ensure data directory %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("✓ Data directory is writable")
	return nil
}

func checkListenAddr(logger zerolog.Logger, which, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s listen address %q: %w", which, addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid %s listen port %q in %q", which, port, addr)
	}
	logger.Info().Str("addr", addr).Str("listener", which).Msg("✓ Listen address is valid")
	return nil
}

func checkEngineURL(logger zerolog.Logger, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid DEALSEARCH_MEILI_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("DEALSEARCH_MEILI_URL scheme must be http or https, got: %s", u.Scheme)
	}
	logger.Info().Str("url", raw).Msg("✓ Engine URL is valid")
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config; verifying readability is expected
	if err != nil {
		return err
	}
	return f.Close()
}
