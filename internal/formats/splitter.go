package formats

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
)

// Splitter validation errors.
var (
	ErrInvalidChunkSize    = errors.New("chunk size must be positive")
	ErrInvalidChunkOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")
)

// Default chunking bounds shared by most providers.
const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// SplitParams optionally override a provider's chunking bounds for one
// call. Nil fields keep the provider defaults.
type SplitParams struct {
	ChunkSize    *int `json:"chunk_size,omitempty"`
	ChunkOverlap *int `json:"chunk_overlap,omitempty"`
}

// bounds resolves the effective chunking bounds against the defaults.
func (p SplitParams) bounds(defSize, defOverlap int) (int, int) {
	size, overlap := defSize, defOverlap
	if p.ChunkSize != nil {
		size = *p.ChunkSize
	}
	if p.ChunkOverlap != nil {
		overlap = *p.ChunkOverlap
	}
	return size, overlap
}

func validateBounds(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return fmt.Errorf("%w: %d", ErrInvalidChunkOverlap, chunkOverlap)
	}
	return nil
}

// NewSplitter builds a recursive character splitter with validated
// bounds. Nil separators keep the splitter defaults.
func NewSplitter(chunkSize, chunkOverlap int, separators []string) (textsplitter.RecursiveCharacter, error) {
	if err := validateBounds(chunkSize, chunkOverlap); err != nil {
		return textsplitter.RecursiveCharacter{}, err
	}

	sp := textsplitter.NewRecursiveCharacter()
	sp.ChunkSize = chunkSize
	sp.ChunkOverlap = chunkOverlap
	if separators != nil {
		sp.Separators = separators
	}
	return sp, nil
}

// splitConfig carries a provider's default chunking bounds and
// separators, and implements the Splitter capability.
type splitConfig struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// Splitter returns the provider's text splitter with params applied
// over the defaults.
func (c splitConfig) Splitter(params SplitParams) (textsplitter.TextSplitter, error) {
	size, overlap := params.bounds(c.chunkSize, c.chunkOverlap)
	return NewSplitter(size, overlap, c.separators)
}

// split chunks one text body with the configured splitter.
func (c splitConfig) split(params SplitParams, format, content string) ([]chunk.Chunk, error) {
	sp, err := c.Splitter(params)
	if err != nil {
		return nil, err
	}
	return splitContent(sp, format, content)
}

// splitContent chunks one text body and stamps every chunk with the
// provider's format tag. NUL bytes are replaced before storage.
func splitContent(sp textsplitter.TextSplitter, format, content string) ([]chunk.Chunk, error) {
	docs, err := textsplitter.SplitDocuments(sp, []schema.Document{{
		PageContent: content,
		Metadata:    map[string]any{chunk.KeyFormat: format},
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to split content: %w", err)
	}

	chunks := make([]chunk.Chunk, 0, len(docs))
	for _, d := range docs {
		// The splitter shares one metadata map across fragments; give
		// each chunk its own.
		c := chunk.New(d.PageContent, nil).WithMetadata(d.Metadata).SanitizeNUL()
		chunks = append(chunks, c)
	}
	return chunks, nil
}
