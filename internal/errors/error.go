// Package errors provides custom error types for product-related operations.
package errors

import "errors"

var (
	// ErrServiceStopped is returned by operations submitted after the product service worker has exited.
	ErrServiceStopped = errors.New("product service stopped")

	// ErrUnsupportedDriver is returned when the configured database driver is unknown.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)
