// Package chunk defines the text fragment model stored in the vector index.
package chunk

import "strings"

// Metadata keys that every enriched chunk carries.
const (
	KeyFormat   = "format"
	KeyMimeType = "mime_type"
	KeyDocID    = "doc_id"
	KeyBucket   = "bucket"
	KeySource   = "source"
	KeyPage     = "page"
	KeyID       = "id"
)

// Chunk is a text fragment paired with a free-form metadata bag.
//
// Enrichment never mutates in place: WithMetadata allocates a new chunk
// with an extended copy of the metadata map.
type Chunk struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// New creates a chunk with its own metadata map.
func New(content string, metadata map[string]any) Chunk {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Chunk{Content: content, Metadata: metadata}
}

// WithMetadata returns a copy of the chunk whose metadata is extended by
// extra. Keys in extra win over existing keys.
func (c Chunk) WithMetadata(extra map[string]any) Chunk {
	merged := make(map[string]any, len(c.Metadata)+len(extra))
	for k, v := range c.Metadata {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return Chunk{Content: c.Content, Metadata: merged}
}

// Format returns the format provider name tag, if present.
func (c Chunk) Format() string {
	return c.stringValue(KeyFormat)
}

// DocID returns the document identity tag, if present.
func (c Chunk) DocID() string {
	return c.stringValue(KeyDocID)
}

// Source returns the original file name, if present.
func (c Chunk) Source() string {
	return c.stringValue(KeySource)
}

// Page returns the 1-based page number when the chunk carries one.
func (c Chunk) Page() (int, bool) {
	switch v := c.Metadata[KeyPage].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func (c Chunk) stringValue(key string) string {
	if s, ok := c.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// SanitizeNUL replaces U+0000 with U+FFFD in the chunk content. Vector
// backends cannot store NUL bytes.
func (c Chunk) SanitizeNUL() Chunk {
	c.Content = strings.ReplaceAll(c.Content, "\x00", "�")
	return c
}
