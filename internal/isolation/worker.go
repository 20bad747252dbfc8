package isolation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fyrsmithlabs/shelfd/internal/formats"
)

// RunWorker executes one job read from r and writes the response to w.
// It is the body of the hidden worker subcommand; the parent owns both
// pipes and the process exits when this returns.
func RunWorker(ctx context.Context, registry *formats.Registry, r io.Reader, w io.Writer) error {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return writeResponse(w, &Response{Error: &WorkerError{
			Kind:    ErrKindInternal,
			Message: fmt.Sprintf("invalid worker request: %v", err),
		}})
	}

	provider, ok := registry.ByName(req.Provider)
	if !ok {
		return writeResponse(w, &Response{Error: &WorkerError{
			Kind:    ErrKindInternal,
			Message: fmt.Sprintf("unknown provider %q", req.Provider),
		}})
	}

	switch req.Op {
	case OpProcess:
		chunks, err := provider.ProcessFile(ctx, req.File.file(), req.Params)
		if err != nil {
			return writeResponse(w, &Response{Error: encodeError(err)})
		}
		return writeResponse(w, &Response{Chunks: chunks})

	case OpConvert:
		out, err := provider.ConvertToPDF(ctx, req.File.file())
		if err != nil {
			return writeResponse(w, &Response{Error: encodeError(err)})
		}
		ref := refFromFile(out)
		return writeResponse(w, &Response{File: &ref})

	default:
		return writeResponse(w, &Response{Error: &WorkerError{
			Kind:    ErrKindInternal,
			Message: fmt.Sprintf("unknown op %q", req.Op),
		}})
	}
}

func encodeError(err error) *WorkerError {
	var pe *formats.ProcessingError
	if errors.As(err, &pe) {
		return &WorkerError{Kind: ErrKindProcessing, Provider: pe.Provider, Status: pe.Status, Message: pe.Error()}
	}
	var ce *formats.ConversionError
	if errors.As(err, &ce) {
		return &WorkerError{
			Kind:     ErrKindConversion,
			Message:  ce.Error(),
			DocID:    ce.DocID,
			ExitCode: ce.ExitCode,
			Stdout:   ce.Stdout,
			Stderr:   ce.Stderr,
		}
	}
	return &WorkerError{Kind: ErrKindInternal, Message: err.Error()}
}

func writeResponse(w io.Writer, resp *Response) error {
	return json.NewEncoder(w).Encode(resp)
}
