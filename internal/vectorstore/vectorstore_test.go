package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
)

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		bucket string
		docID  string
		want   bool
	}{
		{"zero filter matches all", Filter{}, "b", "d", true},
		{"bucket match", Filter{Bucket: "b"}, "b", "d", true},
		{"bucket mismatch", Filter{Bucket: "b"}, "other", "d", false},
		{"doc id match", Filter{DocIDs: []string{"d1", "d2"}}, "b", "d2", true},
		{"doc id mismatch", Filter{DocIDs: []string{"d1"}}, "b", "d2", false},
		{"conjunction both match", Filter{Bucket: "b", DocIDs: []string{"d"}}, "b", "d", true},
		{"conjunction bucket fails", Filter{Bucket: "b", DocIDs: []string{"d"}}, "x", "d", false},
		{"conjunction doc fails", Filter{Bucket: "b", DocIDs: []string{"d"}}, "b", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.bucket, tt.docID))
		})
	}
}

func TestFilterIsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{Bucket: "b"}.IsZero())
	assert.False(t, Filter{DocIDs: []string{"d"}}.IsZero())
}

func TestDevNullStore(t *testing.T) {
	ctx := context.Background()
	s := NewDevNullStore(zap.NewNop())

	require.NoError(t, s.AddDocuments(ctx, []chunk.Chunk{chunk.New("x", nil)}))
	require.ErrorIs(t, s.AddDocuments(ctx, nil), ErrEmptyBatch)

	require.NoError(t, s.Delete(ctx, "doc"))

	results, err := s.SimilaritySearch(ctx, "query", 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)

	docs, err := s.GetDocuments(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, s.Close())
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, "my_index", sanitizeTable("My-Index"))
	assert.Equal(t, "shelfd_chunks", sanitizeTable(""))
	assert.Equal(t, "a_b_c", sanitizeTable("a b/c"))
}

func TestValidUUIDs(t *testing.T) {
	ids := validUUIDs([]string{
		"1caad31c-6ffe-4ba2-b0c9-0bf4ab1f3e5d",
		"not-a-uuid",
		"",
		"9b2b4a9c-95d1-4f0a-8e2e-7a51a9d4c001",
	})
	assert.Equal(t, []string{
		"1caad31c-6ffe-4ba2-b0c9-0bf4ab1f3e5d",
		"9b2b4a9c-95d1-4f0a-8e2e-7a51a9d4c001",
	}, ids)

	assert.Empty(t, validUUIDs(nil))
	assert.Empty(t, validUUIDs([]string{"junk"}))
}
