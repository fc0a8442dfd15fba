package service

import "errors"

var (
	// ErrInvalidInputCount is returned when a comparison does not receive exactly two documents.
	ErrInvalidInputCount = errors.New("exactly two documents are required")
	// ErrDocumentTooLarge is returned when a document exceeds the configured size limit.
	ErrDocumentTooLarge = errors.New("document exceeds the size limit")
	// ErrInternal wraps failures that are not the caller's fault, such as staging storage errors.
	ErrInternal = errors.New("internal processing error")
)
