package formats

import (
	"context"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// StructuredProvider handles machine-readable text formats. Splitting
// prefers the format's own element boundaries over plain newlines, and
// the PDF rendition wraps the source in a highlighted code block.
type StructuredProvider struct {
	matcher
	splitConfig
	name string
}

func newStructuredProvider(name string, extensions, mimeTypes, separators []string) *StructuredProvider {
	return &StructuredProvider{
		matcher:     matcher{extensions: extensions, mimeTypes: mimeTypes},
		splitConfig: splitConfig{chunkSize: defaultChunkSize, chunkOverlap: defaultChunkOverlap, separators: separators},
		name:        name,
	}
}

// NewJSONProvider returns the JSON format provider.
func NewJSONProvider() *StructuredProvider {
	return newStructuredProvider(
		"json",
		[]string{"json", "jsonl", "ndjson"},
		[]string{"application/json"},
		[]string{"}\n", "},", "\n\n", "\n", " ", ""},
	)
}

// NewXMLProvider returns the XML format provider.
func NewXMLProvider() *StructuredProvider {
	return newStructuredProvider(
		"xml",
		[]string{"xml", "xsd", "xsl"},
		[]string{"application/xml", "text/xml"},
		[]string{">\n", "\n\n", "\n", " ", ""},
	)
}

// NewYAMLProvider returns the YAML format provider.
func NewYAMLProvider() *StructuredProvider {
	return newStructuredProvider(
		"yaml",
		[]string{"yaml", "yml"},
		[]string{"application/yaml", "text/yaml"},
		[]string{"\n\n", "\n", " ", ""},
	)
}

func (p *StructuredProvider) Name() string { return p.name }

func (p *StructuredProvider) Multiprocessable() bool { return true }

func (p *StructuredProvider) ProcessFile(_ context.Context, file sourcefile.SourceFile, params SplitParams) ([]chunk.Chunk, error) {
	buf, err := file.Buffer()
	if err != nil {
		return nil, &ProcessingError{Provider: p.name, Err: err}
	}
	chunks, err := p.split(params, p.name, string(buf))
	if err != nil {
		return nil, &ProcessingError{Provider: p.name, Err: err}
	}
	return chunks, nil
}

func (p *StructuredProvider) ConvertToPDF(ctx context.Context, file sourcefile.SourceFile) (sourcefile.SourceFile, error) {
	buf, err := file.Buffer()
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	htmlDoc, err := codeToHTML(string(buf), p.name)
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	return htmlToPDFFile(ctx, htmlDoc, file.ID, file.FileName)
}
