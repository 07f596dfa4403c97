// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	xglog "github.com/koski/dealsearch/internal/log"
)

// ParseString returns the value of the environment variable key, or def
// when unset or empty.
func ParseString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseInt returns the integer value of the environment variable key, or
// def when unset or unparseable. Invalid values are logged and ignored.
func ParseInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger := xglog.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid integer value, using default")
		return def
	}
	return n
}

// ParseFloat returns the float value of the environment variable key, or
// def when unset or unparseable.
func ParseFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger := xglog.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid float value, using default")
		return def
	}
	return f
}

// ParseBool returns the boolean value of the environment variable key, or
// def when unset. Accepts the forms strconv.ParseBool accepts.
func ParseBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger := xglog.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid boolean value, using default")
		return def
	}
	return b
}

// ParseDuration returns the duration value of the environment variable key,
// or def when unset or unparseable. Plain integers are treated as seconds.
func ParseDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger := xglog.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid duration value, using default")
		return def
	}
	return d
}

// ParseStringSlice returns the comma-separated values of the environment
// variable key, trimmed, or def when unset.
func ParseStringSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
