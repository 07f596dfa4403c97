// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSyncID    = "sync_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Search fields
	FieldIndex   = "index"
	FieldQuery   = "query"
	FieldHits    = "hits"
	FieldOutcome = "outcome"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
