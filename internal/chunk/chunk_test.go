package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNilMetadata(t *testing.T) {
	c := New("hello", nil)
	require.NotNil(t, c.Metadata)
	assert.Empty(t, c.Metadata)
}

func TestWithMetadataDoesNotMutate(t *testing.T) {
	orig := New("body", map[string]any{"a": 1})
	extended := orig.WithMetadata(map[string]any{"b": 2})

	assert.Equal(t, map[string]any{"a": 1}, orig.Metadata)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, extended.Metadata)
	assert.Equal(t, "body", extended.Content)
}

func TestWithMetadataExtraWins(t *testing.T) {
	c := New("body", map[string]any{KeyFormat: "plain"})
	out := c.WithMetadata(map[string]any{KeyFormat: "pdf"})
	assert.Equal(t, "pdf", out.Format())
}

func TestAccessors(t *testing.T) {
	c := New("x", map[string]any{
		KeyFormat: "pdf",
		KeyDocID:  "doc-1",
		KeySource: "report.pdf",
	})
	assert.Equal(t, "pdf", c.Format())
	assert.Equal(t, "doc-1", c.DocID())
	assert.Equal(t, "report.pdf", c.Source())
}

func TestPage(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   int
		wantOK bool
	}{
		{"int", 3, 3, true},
		{"int64", int64(7), 7, true},
		{"float64 from json", float64(2), 2, true},
		{"string", "4", 0, false},
		{"missing", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := map[string]any{}
			if tt.value != nil {
				meta[KeyPage] = tt.value
			}
			page, ok := New("", meta).Page()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, page)
		})
	}
}

func TestSanitizeNUL(t *testing.T) {
	c := New("a\x00b\x00", nil).SanitizeNUL()
	assert.Equal(t, "a�b�", c.Content)
	assert.NotContains(t, c.Content, "\x00")
}
