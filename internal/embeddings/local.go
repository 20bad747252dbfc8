package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// LocalEmbedder produces deterministic embeddings from token hashes. It
// carries no semantic signal and exists so that the service can run with
// store_type=dev-null and so that tests do not need a model endpoint.
type LocalEmbedder struct {
	dim int
}

// NewLocalEmbedder returns a hash-based embedder with the given dimension.
func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &LocalEmbedder{dim: dim}
}

func (e *LocalEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *LocalEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *LocalEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	h := fnv.New64a()
	for _, r := range text {
		h.Write([]byte{byte(r)})
		vec[int(h.Sum64()%uint64(e.dim))]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := 1 / float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
