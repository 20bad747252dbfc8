package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocalEmbedder(128)

	a, err := e.EmbedQuery(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := e.EmbedQuery(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 128)
}

func TestLocalEmbedderUnitNorm(t *testing.T) {
	e := NewLocalEmbedder(64)

	vec, err := e.EmbedQuery(context.Background(), "some text to embed")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalEmbedderDocuments(t *testing.T) {
	e := NewLocalEmbedder(32)

	vecs, err := e.EmbedDocuments(context.Background(), []string{"a", "b", "a"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Equal(t, vecs[0], vecs[2])
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestLocalEmbedderEmptyText(t *testing.T) {
	e := NewLocalEmbedder(16)

	vec, err := e.EmbedQuery(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
}

func TestLocalEmbedderDefaultDim(t *testing.T) {
	e := NewLocalEmbedder(0)
	vec, err := e.EmbedQuery(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, vec, 384)
}
