package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
)

// SourceDto is one search hit shaped for API consumers.
type SourceDto struct {
	Title    string         `json:"title"`
	Chunk    ChunkDto       `json:"chunk"`
	Document DocumentDto    `json:"document"`
	Metadata map[string]any `json:"metadata"`
}

// ChunkDto describes the matching fragment.
type ChunkDto struct {
	URI     string `json:"uri"`
	Content string `json:"content"`
	Pages   []int  `json:"pages,omitempty"`
	Score   int    `json:"score"`
}

// DocumentDto describes the document the fragment belongs to.
type DocumentDto struct {
	URI               string `json:"uri"`
	Name              string `json:"name"`
	MimeType          string `json:"mime_type"`
	Link              string `json:"link,omitempty"`
	DownloadAvailable bool   `json:"download_available"`
}

// Sources shapes ranked search results into DTOs. The score is the
// inverted rank, so the best hit carries the highest value. Download
// availability is checked once per distinct document.
func (s *Service) Sources(ctx context.Context, results []chunk.Chunk) []SourceDto {
	if len(results) == 0 {
		return []SourceDto{}
	}

	exists := map[string]bool{}
	if s.files != nil {
		for _, c := range results {
			docID := c.DocID()
			if docID == "" {
				continue
			}
			if _, seen := exists[docID]; seen {
				continue
			}
			ok, err := s.files.Exists(ctx, docID)
			if err != nil {
				s.logger.Warn("failed to check pdf availability", zap.String("doc_id", docID), zap.Error(err))
				ok = false
			}
			exists[docID] = ok
		}
	}

	length := len(results)
	out := make([]SourceDto, 0, length)
	for i, c := range results {
		title := c.Source()
		if title == "" {
			title = "Unknown"
		}

		var pages []int
		if page, ok := c.Page(); ok {
			pages = []int{page}
		}

		uri, _ := c.Metadata[chunk.KeyID].(string)
		mimeType, _ := c.Metadata[chunk.KeyMimeType].(string)
		link, _ := c.Metadata["link"].(string)

		metadata := map[string]any{}
		for k, v := range c.Metadata {
			switch k {
			case chunk.KeyPage, chunk.KeyID, chunk.KeyDocID:
			default:
				metadata[k] = v
			}
		}

		out = append(out, SourceDto{
			Title: title,
			Chunk: ChunkDto{
				URI:     uri,
				Content: c.Content,
				Pages:   pages,
				Score:   length - i,
			},
			Document: DocumentDto{
				URI:               c.DocID(),
				Name:              title,
				MimeType:          mimeType,
				Link:              link,
				DownloadAvailable: exists[c.DocID()],
			},
			Metadata: metadata,
		})
	}
	return out
}

// SourcesMarkdown renders search results as a markdown source listing,
// grouping page references per file in first-seen order.
func SourcesMarkdown(results []chunk.Chunk) string {
	if len(results) == 0 {
		return ""
	}

	var order []string
	pages := map[string][]string{}
	for _, c := range results {
		source := c.Source()
		if _, seen := pages[source]; !seen {
			order = append(order, source)
			pages[source] = nil
		}
		if page, ok := c.Page(); ok {
			pages[source] = append(pages[source], fmt.Sprintf("%d", page))
		}
	}

	var b strings.Builder
	b.WriteString("## Sources\n\n")
	for i, source := range order {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("* ")
		b.WriteString(source)
		if refs := dedupeSorted(pages[source]); len(refs) > 0 {
			b.WriteString(", p. ")
			b.WriteString(strings.Join(refs, ", "))
		}
	}
	return b.String()
}

func dedupeSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
