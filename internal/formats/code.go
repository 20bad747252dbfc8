package formats

import (
	"context"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// codeLanguages maps extensions to highlighter language names.
var codeLanguages = map[string]string{
	"c":     "c",
	"cpp":   "cpp",
	"cs":    "csharp",
	"css":   "css",
	"go":    "go",
	"h":     "c",
	"hpp":   "cpp",
	"java":  "java",
	"js":    "javascript",
	"jsx":   "jsx",
	"kt":    "kotlin",
	"php":   "php",
	"pl":    "perl",
	"py":    "python",
	"rb":    "ruby",
	"rs":    "rust",
	"scala": "scala",
	"sh":    "bash",
	"sql":   "sql",
	"swift": "swift",
	"ts":    "typescript",
	"tsx":   "tsx",
}

// CodeProvider handles source code files. Chunks break on blank lines
// first so functions tend to stay together, and the PDF rendition is
// syntax highlighted.
type CodeProvider struct {
	matcher
	splitConfig
}

// NewCodeProvider returns the source code format provider.
func NewCodeProvider() *CodeProvider {
	extensions := make([]string, 0, len(codeLanguages))
	for ext := range codeLanguages {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return &CodeProvider{
		matcher: matcher{extensions: extensions},
		splitConfig: splitConfig{
			chunkSize:    defaultChunkSize,
			chunkOverlap: defaultChunkOverlap,
			separators:   []string{"\n\n", "\n", " ", ""},
		},
	}
}

func (p *CodeProvider) Name() string { return "code" }

func (p *CodeProvider) Multiprocessable() bool { return true }

func (p *CodeProvider) ProcessFile(_ context.Context, file sourcefile.SourceFile, params SplitParams) ([]chunk.Chunk, error) {
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

func (p *CodeProvider) ConvertToPDF(ctx context.Context, file sourcefile.SourceFile) (sourcefile.SourceFile, error) {
	buf, err := file.Buffer()
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	htmlDoc, err := codeToHTML(string(buf), codeLanguages[strings.ToLower(file.Ext())])
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	return htmlToPDFFile(ctx, htmlDoc, file.ID, file.FileName)
}
