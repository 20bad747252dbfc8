package formats

import (
	"context"

	"github.com/k3a/html2text"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// HTMLProvider chunks the readable text of an HTML document. The PDF
// rendition prints the document itself, so layout survives.
type HTMLProvider struct {
	matcher
	splitConfig
}

// NewHTMLProvider returns the HTML format provider.
func NewHTMLProvider() *HTMLProvider {
	return &HTMLProvider{
		matcher: matcher{
			extensions: []string{"html", "htm", "xhtml"},
			mimeTypes:  []string{"text/html", "application/xhtml+xml"},
		},
		splitConfig: splitConfig{chunkSize: defaultChunkSize, chunkOverlap: defaultChunkOverlap},
	}
}

func (p *HTMLProvider) Name() string { return "html" }

func (p *HTMLProvider) Multiprocessable() bool { return true }

func (p *HTMLProvider) ProcessFile(_ context.Context, file sourcefile.SourceFile, params SplitParams) ([]chunk.Chunk, error) {
	buf, err := file.Buffer()
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}

	chunks, err := p.split(params, p.Name(), html2text.HTML2Text(string(buf)))
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}
	return chunks, nil
}

func (p *HTMLProvider) ConvertToPDF(ctx context.Context, file sourcefile.SourceFile) (sourcefile.SourceFile, error) {
	buf, err := file.Buffer()
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	return htmlToPDFFile(ctx, buf, file.ID, file.FileName)
}
