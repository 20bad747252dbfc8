// Package formats turns uploaded files into text chunks. Each format
// provider owns a set of file extensions and MIME types, a chunking
// strategy and a PDF rendition of the file for archival.
package formats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// ErrUnsupportedFormat indicates no provider accepts the file.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ProcessingError wraps a provider failure while parsing or chunking.
// Status optionally names the HTTP status to surface; zero means
// unspecified and callers fall back to 400.
type ProcessingError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("provider %s failed to process file: %v", e.Provider, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Provider is a format handler. Implementations are stateless and safe
// for concurrent use.
type Provider interface {
	// Name identifies the provider; it is stamped into chunk metadata
	// under the "format" key.
	Name() string

	// Extensions lists the file extensions the provider accepts,
	// without the leading dot.
	Extensions() []string

	// Supports reports whether the provider handles the file, judged by
	// extension first and MIME type second.
	Supports(file sourcefile.SourceFile) bool

	// Splitter returns the provider's text splitter, with params applied
	// over the provider defaults and validated.
	Splitter(params SplitParams) (textsplitter.TextSplitter, error)

	// ProcessFile parses the file and returns its chunks. Chunk
	// metadata carries at least the "format" key. params may override
	// the provider's chunking bounds for this call.
	ProcessFile(ctx context.Context, file sourcefile.SourceFile, params SplitParams) ([]chunk.Chunk, error)

	// ConvertToPDF produces a PDF rendition of the file as a new temp
	// file. The caller owns the result and must delete it.
	ConvertToPDF(ctx context.Context, file sourcefile.SourceFile) (sourcefile.SourceFile, error)

	// CleanUp is the post-search hook applied to each result chunk.
	// Most providers pass the chunk through unchanged.
	CleanUp(c chunk.Chunk) chunk.Chunk

	// Multiprocessable reports whether ProcessFile may be offloaded to
	// a worker process. Providers that shell out to external tools
	// already run out of process and return false.
	Multiprocessable() bool
}

// Registry dispatches files to providers in registration order; the
// first provider that supports a file wins.
type Registry struct {
	providers []Provider
}

// NewRegistry builds a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Find returns the first provider supporting the file.
func (r *Registry) Find(file sourcefile.SourceFile) (Provider, bool) {
	for _, p := range r.providers {
		if p.Supports(file) {
			return p, true
		}
	}
	return nil, false
}

// ByName returns the named provider.
func (r *Registry) ByName(name string) (Provider, bool) {
	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Extensions returns the sorted union of all supported extensions.
func (r *Registry) Extensions() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range r.providers {
		for _, ext := range p.Extensions() {
			if !seen[ext] {
				seen[ext] = true
				out = append(out, ext)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Providers returns the registered providers in dispatch order.
func (r *Registry) Providers() []Provider {
	return r.providers
}

// DefaultRegistry wires every built-in provider in dispatch order.
// Specific formats come before the catch-all text handlers.
func DefaultRegistry() *Registry {
	pdf := NewPDFProvider()
	return NewRegistry(
		pdf,
		NewHTMLProvider(),
		NewMarkdownProvider(),
		NewOutlookProvider(),
		NewJSONProvider(),
		NewXMLProvider(),
		NewYAMLProvider(),
		NewLibreOfficeProvider(pdf),
		NewWordProvider(pdf),
		NewExcelProvider(pdf),
		NewPowerPointProvider(pdf),
		NewCodeProvider(),
		NewPlainProvider(),
	)
}

// matcher implements extension and MIME type matching shared by all
// providers.
type matcher struct {
	extensions []string
	mimeTypes  []string
}

func (m matcher) Extensions() []string {
	return m.extensions
}

// CleanUp passes the chunk through; providers that need a post-search
// hook override it.
func (matcher) CleanUp(c chunk.Chunk) chunk.Chunk {
	return c
}

func (m matcher) Supports(file sourcefile.SourceFile) bool {
	ext := strings.ToLower(file.Ext())
	for _, e := range m.extensions {
		if ext == e {
			return true
		}
	}
	mime := strings.ToLower(file.MimeType)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	for _, mt := range m.mimeTypes {
		if mime == mt {
			return true
		}
	}
	return false
}
