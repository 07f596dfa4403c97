// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Search attributes
	SearchOpKey      = "search.op"
	SearchIndexKey   = "search.index"
	SearchQueryLen   = "search.query_length"
	SearchHitsKey    = "search.hits"
	SearchAttemptKey = "search.attempts"

	// Sync attributes
	SyncSourceKey    = "sync.source"
	SyncDocumentsKey = "sync.documents"
	SyncReplaceKey   = "sync.replace"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SearchAttributes creates upstream search span attributes.
func SearchAttributes(op, index string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SearchOpKey, op),
		attribute.String(SearchIndexKey, index),
	}
}

// SyncAttributes creates catalog sync span attributes.
func SyncAttributes(source string, documents int, replace bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SyncSourceKey, source),
		attribute.Int(SyncDocumentsKey, documents),
		attribute.Bool(SyncReplaceKey, replace),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
