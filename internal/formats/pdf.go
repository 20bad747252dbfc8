package formats

import (
	"context"
	"fmt"
	"strings"

	dslipak "github.com/dslipak/pdf"
	ledongthuc "github.com/ledongthuc/pdf"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// Metadata key naming the parser that extracted a PDF page.
const keyPDFParser = "pdf_parser"

// PDFProvider extracts text per page and chunks each page separately,
// so every chunk carries a 1-based page number.
//
// Two parsers are tried in order. The primary handles most documents;
// the fallback recovers files the primary rejects, typically those
// with unusual xref tables.
type PDFProvider struct {
	matcher
	splitConfig
}

// NewPDFProvider returns the PDF format provider.
func NewPDFProvider() *PDFProvider {
	return &PDFProvider{
		matcher: matcher{
			extensions: []string{"pdf"},
			mimeTypes:  []string{"application/pdf"},
		},
		splitConfig: splitConfig{chunkSize: defaultChunkSize, chunkOverlap: defaultChunkOverlap},
	}
}

func (p *PDFProvider) Name() string { return "pdf" }

func (p *PDFProvider) Multiprocessable() bool { return true }

// pdfPage is one extracted page of text.
type pdfPage struct {
	number int
	text   string
	parser string
}

// ProcessFile extracts pages and chunks them page by page.
func (p *PDFProvider) ProcessFile(ctx context.Context, file sourcefile.SourceFile, params SplitParams) ([]chunk.Chunk, error) {
	sp, err := p.Splitter(params)
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}
	pages, err := extractPages(file.Path)
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}

	var chunks []chunk.Chunk
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageChunks, err := splitContent(sp, p.Name(), page.text)
		if err != nil {
			return nil, &ProcessingError{Provider: p.Name(), Err: err}
		}
		for _, c := range pageChunks {
			chunks = append(chunks, c.WithMetadata(map[string]any{
				chunk.KeyPage: page.number,
				keyPDFParser:  page.parser,
			}))
		}
	}
	return chunks, nil
}

// ConvertToPDF copies the file; it already is a PDF.
func (p *PDFProvider) ConvertToPDF(_ context.Context, file sourcefile.SourceFile) (sourcefile.SourceFile, error) {
	buf, err := file.Buffer()
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	out, err := sourcefile.NewTemp(buf, "pdf")
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	out.ID = file.ID
	out.FileName = file.FileName
	out.MimeType = "application/pdf"
	return out, nil
}

// ExtractPages returns the per-page plain text of a PDF on disk.
func (p *PDFProvider) ExtractPages(path string) ([]string, error) {
	pages, err := extractPages(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(pages))
	for i, page := range pages {
		out[i] = page.text
	}
	return out, nil
}

func extractPages(path string) ([]pdfPage, error) {
	pages, primaryErr := extractPagesPrimary(path)
	if primaryErr == nil {
		return pages, nil
	}

	pages, fallbackErr := extractPagesFallback(path)
	if fallbackErr == nil {
		return pages, nil
	}
	return nil, fmt.Errorf("pdf parsing failed (primary: %v): %w", primaryErr, fallbackErr)
}

func extractPagesPrimary(path string) (pages []pdfPage, err error) {
	// The parser panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := dslipak.Open(path)
	if err != nil {
		return nil, err
	}

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, pdfPage{number: i, text: text, parser: "dslipak"})
	}
	return pages, nil
}

func extractPagesFallback(path string) (pages []pdfPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	f, r, err := ledongthuc.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, pdfPage{number: i, text: text, parser: "ledongthuc"})
	}
	return pages, nil
}
