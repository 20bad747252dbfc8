package formats

import (
	"context"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// MarkdownProvider splits along markdown structure so headings stay
// with their sections.
type MarkdownProvider struct {
	matcher
}

// NewMarkdownProvider returns the markdown format provider.
func NewMarkdownProvider() *MarkdownProvider {
	return &MarkdownProvider{
		matcher: matcher{
			extensions: []string{"md", "markdown"},
			mimeTypes:  []string{"text/markdown"},
		},
	}
}

func (p *MarkdownProvider) Name() string { return "md" }

func (p *MarkdownProvider) Multiprocessable() bool { return true }

// Splitter returns a markdown-aware splitter with params applied over
// the defaults.
func (p *MarkdownProvider) Splitter(params SplitParams) (textsplitter.TextSplitter, error) {
	size, overlap := params.bounds(defaultChunkSize, defaultChunkOverlap)
	if err := validateBounds(size, overlap); err != nil {
		return nil, err
	}
	return textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	), nil
}

func (p *MarkdownProvider) ProcessFile(_ context.Context, file sourcefile.SourceFile, params SplitParams) ([]chunk.Chunk, error) {
	sp, err := p.Splitter(params)
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}
	buf, err := file.Buffer()
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}
	chunks, err := splitContent(sp, p.Name(), string(buf))
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}
	return chunks, nil
}

func (p *MarkdownProvider) ConvertToPDF(ctx context.Context, file sourcefile.SourceFile) (sourcefile.SourceFile, error) {
	buf, err := file.Buffer()
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	htmlDoc, err := markdownToHTML(buf)
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	return htmlToPDFFile(ctx, htmlDoc, file.ID, file.FileName)
}
