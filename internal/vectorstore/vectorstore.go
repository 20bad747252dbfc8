// Package vectorstore defines the interface for chunk storage and
// similarity search, with pgvector, Qdrant and dev-null backends.
package vectorstore

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
)

// Sentinel errors for vector store operations.
var (
	// ErrEmptyBatch indicates an empty or nil chunk batch.
	ErrEmptyBatch = errors.New("empty or nil chunk batch")

	// ErrConnectionFailed indicates the backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Filter narrows operations to a logical bucket and/or a set of document
// ids. A record matches iff (Bucket unset OR record.bucket == Bucket) AND
// (DocIDs unset OR record.doc_id in DocIDs).
type Filter struct {
	Bucket string
	DocIDs []string
}

// Matches implements the filter conjunction over a record's tags.
func (f Filter) Matches(bucket, docID string) bool {
	if f.Bucket != "" && bucket != f.Bucket {
		return false
	}
	if len(f.DocIDs) > 0 {
		for _, id := range f.DocIDs {
			if id == docID {
				return true
			}
		}
		return false
	}
	return true
}

// IsZero reports whether the filter imposes no constraints.
func (f Filter) IsZero() bool {
	return f.Bucket == "" && len(f.DocIDs) == 0
}

// Store is the vector store contract. Implementations differ only in
// backend; the service layer depends on nothing beyond this interface.
type Store interface {
	// AddDocuments inserts a batch of chunks. The batch is atomic from
	// the caller's viewpoint: on error the caller may retry the whole
	// batch.
	AddDocuments(ctx context.Context, chunks []chunk.Chunk) error

	// Delete removes every stored chunk whose doc_id metadata equals
	// docID. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, docID string) error

	// SimilaritySearch returns up to k chunks matching the filter,
	// ordered by decreasing similarity to the query.
	SimilaritySearch(ctx context.Context, query string, k int, filter Filter) ([]chunk.Chunk, error)

	// GetDocuments returns the chunks whose primary ids are in ids, in
	// unspecified order. Unknown ids are silently dropped.
	GetDocuments(ctx context.Context, ids []string) ([]chunk.Chunk, error)

	// Close releases backend resources.
	Close() error
}
