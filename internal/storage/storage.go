// Package storage stages uploaded documents between receipt and extraction.
// Objects are short-lived: callers delete them as soon as the content has been read back.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrInvalidKey is returned for keys that would escape the storage root.
var ErrInvalidKey = errors.New("invalid object key")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the staging area for uploads.
// Implementations must be safe for concurrent use by multiple goroutines.
type Storage interface {
	// Put stores the content of r under key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get returns a streaming reader over the object's content alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// Ping reports whether the backend is reachable and writable.
	Ping(ctx context.Context) error
}
