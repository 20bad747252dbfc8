package formats

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// pdfRenderTimeout bounds one headless Chrome print job.
const pdfRenderTimeout = 60 * time.Second

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
)

// markdownToHTML renders GitHub-flavored markdown to an HTML document.
func markdownToHTML(source []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := markdownRenderer.Convert(source, &body); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}
	return wrapHTMLBody(body.Bytes()), nil
}

// codeToHTML renders source code to an HTML document with syntax
// highlighting. An unknown language falls back to lexer detection.
func codeToHTML(source, language string) ([]byte, error) {
	var body bytes.Buffer
	if err := quick.Highlight(&body, source, language, "html", "github"); err != nil {
		return nil, fmt.Errorf("failed to highlight source: %w", err)
	}
	return wrapHTMLBody(body.Bytes()), nil
}

// textToHTML wraps plain text in a preformatted HTML document.
func textToHTML(text string) []byte {
	body := []byte("<pre>" + html.EscapeString(text) + "</pre>")
	return wrapHTMLBody(body)
}

func wrapHTMLBody(body []byte) []byte {
	var out bytes.Buffer
	out.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>
body { font-family: sans-serif; margin: 2em; }
pre { white-space: pre-wrap; word-wrap: break-word; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; }
</style></head><body>`)
	out.Write(body)
	out.WriteString(`</body></html>`)
	return out.Bytes()
}

// htmlToPDF prints an HTML document to PDF with headless Chrome.
func htmlToPDF(ctx context.Context, htmlDoc []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, pdfRenderTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	var pdf []byte
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, string(htmlDoc)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to print pdf: %w", err)
	}
	return pdf, nil
}

// htmlToPDFFile prints HTML and stores the result as a temp file that
// keeps the original document identity.
func htmlToPDFFile(ctx context.Context, htmlDoc []byte, docID, fileName string) (sourcefile.SourceFile, error) {
	pdf, err := htmlToPDF(ctx, htmlDoc)
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	out, err := sourcefile.NewTemp(pdf, "pdf")
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	out.ID = docID
	out.FileName = fileName
	out.MimeType = "application/pdf"
	return out, nil
}
