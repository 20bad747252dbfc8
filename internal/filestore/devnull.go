package filestore

import (
	"context"

	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// DevNullStore discards writes and never finds anything. Used for load
// testing the ingestion path without blob storage side effects.
type DevNullStore struct{}

// NewDevNullStore returns the no-op blob store.
func NewDevNullStore() *DevNullStore { return &DevNullStore{} }

func (*DevNullStore) AddDocument(context.Context, sourcefile.SourceFile) error { return nil }

func (*DevNullStore) Delete(context.Context, string) error { return nil }

func (*DevNullStore) GetDocument(context.Context, string) (sourcefile.SourceFile, error) {
	return sourcefile.SourceFile{}, ErrNotFound
}

func (*DevNullStore) Exists(context.Context, string) (bool, error) { return false, nil }
