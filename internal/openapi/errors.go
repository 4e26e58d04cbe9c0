package openapi

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks an invalid version setup; fatal at startup
	ErrConfiguration = errors.New("openapi configuration error")

	// ErrUpstreamUnavailable marks a failed or timed out call to an external registry
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrTransformerFailure marks a document transformer that could not complete
	ErrTransformerFailure = errors.New("document transformer failed")

	// ErrInvalidOperation marks an operation the builder cannot place in a document
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrDocumentNotFound is returned for versions without a published document
	ErrDocumentNotFound = errors.New("document not found")
)

// TransformError wraps the failure of one transformer in a chain
type TransformError struct {
	Transformer string
	Err         error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transformer %s: %v", e.Transformer, e.Err)
}

// Unwrap exposes both the cause and ErrTransformerFailure to errors.Is
func (e *TransformError) Unwrap() []error {
	return []error{ErrTransformerFailure, e.Err}
}

// IsRecoverable reports whether a build failure should leave the process
// running and the previous document served
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	return !errors.Is(err, ErrConfiguration)
}
