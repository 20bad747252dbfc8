// Package embeddings provides the embedder contract consumed by the
// vector store adapters. The actual embedding model is an external
// collaborator reached through an OpenAI-compatible endpoint.
package embeddings

import (
	"context"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/shelfd/internal/config"
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns a slice of embeddings, one per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// New creates an embedder for the configured endpoint. Without an
// endpoint it falls back to the deterministic local embedder, which is
// sufficient for dev-null stores and tests.
func New(cfg *config.Config) (Embedder, error) {
	if cfg.EmbeddingsBaseURL == "" {
		return NewLocalEmbedder(cfg.StoreVectorSize), nil
	}

	opts := []openai.Option{
		openai.WithBaseURL(cfg.EmbeddingsBaseURL),
		openai.WithEmbeddingModel(cfg.EmbeddingsModel),
	}
	if cfg.EmbeddingsAPIKey.IsSet() {
		opts = append(opts, openai.WithToken(cfg.EmbeddingsAPIKey.Value()))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
