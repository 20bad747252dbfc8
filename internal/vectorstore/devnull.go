package vectorstore

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
)

// DevNullStore accepts writes and drops them. Searches return nothing.
// Useful for running the ingestion pipeline without a vector backend.
type DevNullStore struct {
	logger *zap.Logger
}

// NewDevNullStore returns a store that discards everything.
func NewDevNullStore(logger *zap.Logger) *DevNullStore {
	return &DevNullStore{logger: logger.Named("vectorstore.devnull")}
}

func (s *DevNullStore) AddDocuments(_ context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return ErrEmptyBatch
	}
	s.logger.Debug("discarded chunk batch", zap.Int("count", len(chunks)))
	return nil
}

func (s *DevNullStore) Delete(context.Context, string) error {
	return nil
}

func (s *DevNullStore) SimilaritySearch(context.Context, string, int, Filter) ([]chunk.Chunk, error) {
	return nil, nil
}

func (s *DevNullStore) GetDocuments(context.Context, []string) ([]chunk.Chunk, error) {
	return nil, nil
}

func (s *DevNullStore) Close() error {
	return nil
}
