// SPDX-License-Identifier: MIT

// Package version exposes build metadata populated via ldflags.
package version

var (
	// Version is the current application version.
	// It is populated by the build system (ldflags) and falls back to a dev marker.
	Version = "v0.3.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
