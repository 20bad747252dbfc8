package formats

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// ConversionError reports a failed external document conversion.
type ConversionError struct {
	DocID    string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("can not convert %s to pdf, exit code %d: %s %s", e.DocID, e.ExitCode, e.Stdout, e.Stderr)
}

// convertOfficeToPDF shells out to LibreOffice. Every invocation gets a
// fresh UserInstallation profile; concurrent soffice processes sharing
// one profile deadlock on its lock file.
func convertOfficeToPDF(ctx context.Context, file sourcefile.SourceFile) (sourcefile.SourceFile, error) {
	outputDir, err := os.MkdirTemp(sourcefile.TempRoot(), "convert-"+uuid.NewString())
	if err != nil {
		return sourcefile.SourceFile{}, fmt.Errorf("create output dir: %w", err)
	}
	profileDir, err := os.MkdirTemp(sourcefile.TempRoot(), "soffice-"+uuid.NewString())
	if err != nil {
		_ = os.Remove(outputDir)
		return sourcefile.SourceFile{}, fmt.Errorf("create profile dir: %w", err)
	}
	defer os.RemoveAll(profileDir)

	cmd := exec.CommandContext(ctx, "soffice",
		"--headless",
		"-env:UserInstallation=file://"+profileDir,
		"--convert-to", "pdf",
		file.Path,
		"--outdir", outputDir,
	)
	cmd.Env = append(os.Environ(), "HOME="+sourcefile.TempRoot())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(outputDir)
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return sourcefile.SourceFile{}, &ConversionError{
			DocID:    file.ID,
			ExitCode: exitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
	}

	base := filepath.Base(file.Path)
	pdfName := strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"

	return sourcefile.SourceFile{
		ID:        file.ID,
		Path:      filepath.Join(outputDir, pdfName),
		MimeType:  "application/pdf",
		FileName:  file.FileName,
		DeleteDir: true,
	}, nil
}

// OfficeProvider handles document formats that LibreOffice can open.
// Files are converted to PDF first; chunking then follows the PDF path,
// so chunks carry page numbers.
type OfficeProvider struct {
	matcher
	name string
	pdf  *PDFProvider
}

func newOfficeProvider(name string, pdf *PDFProvider, extensions, mimeTypes []string) *OfficeProvider {
	return &OfficeProvider{
		matcher: matcher{extensions: extensions, mimeTypes: mimeTypes},
		name:    name,
		pdf:     pdf,
	}
}

// NewLibreOfficeProvider handles the OpenDocument formats.
func NewLibreOfficeProvider(pdf *PDFProvider) *OfficeProvider {
	return newOfficeProvider("libreoffice", pdf,
		[]string{"odp", "ods", "odt"},
		[]string{
			"application/vnd.oasis.opendocument.presentation",
			"application/vnd.oasis.opendocument.spreadsheet",
			"application/vnd.oasis.opendocument.text",
		},
	)
}

// NewWordProvider handles Microsoft Word documents.
func NewWordProvider(pdf *PDFProvider) *OfficeProvider {
	return newOfficeProvider("word", pdf,
		[]string{"doc", "docx", "rtf"},
		[]string{
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/rtf",
		},
	)
}

// NewExcelProvider handles Microsoft Excel workbooks.
func NewExcelProvider(pdf *PDFProvider) *OfficeProvider {
	return newOfficeProvider("excel", pdf,
		[]string{"xls", "xlsx"},
		[]string{
			"application/vnd.ms-excel",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		},
	)
}

// NewPowerPointProvider handles Microsoft PowerPoint presentations.
func NewPowerPointProvider(pdf *PDFProvider) *OfficeProvider {
	return newOfficeProvider("ppt", pdf,
		[]string{"ppt", "pptx"},
		[]string{
			"application/vnd.ms-powerpoint",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		},
	)
}

func (p *OfficeProvider) Name() string { return p.name }

// Multiprocessable is false: the heavy lifting already happens in the
// soffice subprocess.
func (p *OfficeProvider) Multiprocessable() bool { return false }

// Splitter delegates to the pdf provider, which does the chunking.
func (p *OfficeProvider) Splitter(params SplitParams) (textsplitter.TextSplitter, error) {
	return p.pdf.Splitter(params)
}

func (p *OfficeProvider) ProcessFile(ctx context.Context, file sourcefile.SourceFile, params SplitParams) ([]chunk.Chunk, error) {
	pdfFile, err := p.ConvertToPDF(ctx, file)
	if err != nil {
		return nil, err
	}
	defer pdfFile.Delete()

	return p.pdf.ProcessFile(ctx, pdfFile, params)
}

func (p *OfficeProvider) ConvertToPDF(ctx context.Context, file sourcefile.SourceFile) (sourcefile.SourceFile, error) {
	return convertOfficeToPDF(ctx, file)
}
