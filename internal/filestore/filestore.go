// Package filestore provides blob storage for canonical PDF renderings,
// keyed by document id.
package filestore

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// Sentinel errors for blob store operations.
var (
	// ErrNotFound is returned when no object exists for a document id.
	ErrNotFound = errors.New("document not found")

	// ErrPathEscape indicates a document id that would resolve outside
	// the store's root directory.
	ErrPathEscape = errors.New("path escapes store root")
)

// Store is the blob store contract. Objects are opaque byte streams keyed
// by document id; overwriting an existing key is permitted.
type Store interface {
	// AddDocument stores the file's bytes under its id.
	AddDocument(ctx context.Context, doc sourcefile.SourceFile) error

	// Delete removes the object. Returns ErrNotFound if absent.
	Delete(ctx context.Context, docID string) error

	// GetDocument materialises the stored object as a temporary file
	// owned by the caller; the caller deletes it when done. Returns
	// ErrNotFound if absent.
	GetDocument(ctx context.Context, docID string) (sourcefile.SourceFile, error)

	// Exists reports whether an object is stored under the id.
	Exists(ctx context.Context, docID string) (bool, error)
}
