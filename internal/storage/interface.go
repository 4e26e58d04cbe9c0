package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when nothing is stored at a path
var ErrNotFound = errors.New("object not found")

// BlobStorage is where exported documents are written
type BlobStorage interface {
	// Store saves content at the given path, replacing what was there
	Store(ctx context.Context, path string, content io.Reader, contentType string) error

	// Retrieve gets content from the given path
	Retrieve(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks if content exists at the given path
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the stored paths under prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)
}
