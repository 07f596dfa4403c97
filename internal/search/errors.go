// SPDX-License-Identifier: MIT

package search

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnavailable   = errors.New("upstream: engine unreachable or transport failure")
	ErrTimeout       = errors.New("upstream: request timed out")
	ErrUnauthorized  = errors.New("upstream: invalid or missing api key")
	ErrIndexNotFound = errors.New("upstream: index not found")
	ErrBadRequest    = errors.New("upstream: engine rejected the request")
	ErrUpstreamError = errors.New("upstream: engine internal error (5xx)")
	ErrBadResponse   = errors.New("upstream: invalid response format or malformed data")
	ErrTaskFailed    = errors.New("upstream: indexing task failed")
)

// UpstreamError wraps the sentinel errors with operation context.
type UpstreamError struct {
	Sentinel  error
	Operation string
	Index     string
	Status    int
	Err       error // nested lower-level error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("search: %s: %v", e.Operation, e.Sentinel)
	if e.Index != "" {
		msg = fmt.Sprintf("%s (index %s)", msg, e.Index)
	}
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Sentinel
}
