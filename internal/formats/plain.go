package formats

import (
	"context"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// PlainProvider handles plain text files.
type PlainProvider struct {
	matcher
	splitConfig
}

// NewPlainProvider returns the plain text format provider.
func NewPlainProvider() *PlainProvider {
	return &PlainProvider{
		matcher: matcher{
			extensions: []string{"txt", "text", "log"},
			mimeTypes:  []string{"text/plain"},
		},
		splitConfig: splitConfig{chunkSize: defaultChunkSize, chunkOverlap: defaultChunkOverlap},
	}
}

func (p *PlainProvider) Name() string { return "plain" }

func (p *PlainProvider) Multiprocessable() bool { return true }

func (p *PlainProvider) ProcessFile(_ context.Context, file sourcefile.SourceFile, params SplitParams) ([]chunk.Chunk, error) {
	buf, err := file.Buffer()
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}
	chunks, err := p.split(params, p.Name(), string(buf))
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}
	return chunks, nil
}

func (p *PlainProvider) ConvertToPDF(ctx context.Context, file sourcefile.SourceFile) (sourcefile.SourceFile, error) {
	buf, err := file.Buffer()
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	return htmlToPDFFile(ctx, textToHTML(string(buf)), file.ID, file.FileName)
}
