// Package apperr defines the error kinds shared by every pipeline stage.
// Stages wrap their cause with one of the sentinels below; the HTTP layer is the
// only place that translates a kind into a status code.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks request parameters outside their allowed range.
	ErrValidation = errors.New("validation error")
	// ErrUpstreamFetch marks network failures, timeouts and non-success statuses.
	ErrUpstreamFetch = errors.New("upstream fetch error")
	// ErrUpstreamProtocol marks a catalog response that is malformed or reports failure.
	ErrUpstreamProtocol = errors.New("upstream protocol error")
	// ErrResourceNotFound marks the absence of a resource of the requested format.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrDecode marks resource bytes that cannot be decoded as tabular data.
	ErrDecode = errors.New("decode error")
)

// Wrap attaches kind to err with a short operation description.
// Already-classified errors are returned with the extra context but keep their original kind.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}

// New returns a classified error without an underlying cause.
func New(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Kind returns the sentinel err was classified with, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrUpstreamFetch, ErrUpstreamProtocol, ErrResourceNotFound, ErrDecode} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Code returns a short machine-readable name for the kind of err.
func Code(err error) string {
	switch Kind(err) {
	case ErrValidation:
		return "VALIDATION_ERROR"
	case ErrUpstreamFetch:
		return "UPSTREAM_FETCH_ERROR"
	case ErrUpstreamProtocol:
		return "UPSTREAM_PROTOCOL_ERROR"
	case ErrResourceNotFound:
		return "RESOURCE_NOT_FOUND"
	case ErrDecode:
		return "DECODE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
