// SPDX-License-Identifier: MIT

package config

import (
	"time"
)

// ServerConfig holds HTTP server hardening limits. These are not part of
// the YAML surface; they are tuned via environment only.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
}

// Server timeouts. Write is generous because /api/refresh waits on the
// upstream indexing task.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 15 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MiB
)

// NewServerConfig returns server limits with environment overrides applied.
func NewServerConfig() ServerConfig {
	return ServerConfig{
		ReadHeaderTimeout: ParseDuration("DEALSEARCH_SERVER_READ_HEADER_TIMEOUT", DefaultReadHeaderTimeout),
		ReadTimeout:       ParseDuration("DEALSEARCH_SERVER_READ_TIMEOUT", DefaultReadTimeout),
		WriteTimeout:      ParseDuration("DEALSEARCH_SERVER_WRITE_TIMEOUT", DefaultWriteTimeout),
		IdleTimeout:       ParseDuration("DEALSEARCH_SERVER_IDLE_TIMEOUT", DefaultIdleTimeout),
		ShutdownTimeout:   ParseDuration("DEALSEARCH_SERVER_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		MaxHeaderBytes:    ParseInt("DEALSEARCH_SERVER_MAX_HEADER_BYTES", DefaultMaxHeaderBytes),
	}
}
