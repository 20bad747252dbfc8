// Package isolation offloads CPU-heavy provider work to a short-lived
// child process. Small files are handled in the caller to avoid the
// spawn and serialization overhead; large files get a fresh process
// whose memory returns to the operating system when it exits.
package isolation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/formats"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// DefaultThreshold is the file size in bytes above which work moves to
// a child process.
const DefaultThreshold = 100_000

// WorkerCommand is the argv[1] the child is started with.
const WorkerCommand = "worker"

// Operations understood by the worker.
const (
	OpProcess = "process"
	OpConvert = "convert"
)

// Request is the JSON job description sent to the worker on stdin.
type Request struct {
	Op       string              `json:"op"`
	Provider string              `json:"provider"`
	File     FileRef             `json:"file"`
	Params   formats.SplitParams `json:"params"`
}

// FileRef carries a SourceFile across the process boundary. The bytes
// stay on disk; only the reference travels.
type FileRef struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	MimeType  string `json:"mime_type"`
	FileName  string `json:"file_name"`
	DeleteDir bool   `json:"delete_dir,omitempty"`
}

func refFromFile(f sourcefile.SourceFile) FileRef {
	return FileRef{ID: f.ID, Path: f.Path, MimeType: f.MimeType, FileName: f.FileName, DeleteDir: f.DeleteDir}
}

func (r FileRef) file() sourcefile.SourceFile {
	return sourcefile.SourceFile{ID: r.ID, Path: r.Path, MimeType: r.MimeType, FileName: r.FileName, DeleteDir: r.DeleteDir}
}

// Response is the worker's JSON answer on stdout. Exactly one of the
// payload fields is set on success.
type Response struct {
	Chunks []chunk.Chunk `json:"chunks,omitempty"`
	File   *FileRef      `json:"file,omitempty"`
	Error  *WorkerError  `json:"error,omitempty"`
}

// Error kinds, used to rebuild a typed error in the parent.
const (
	ErrKindProcessing = "processing"
	ErrKindConversion = "conversion"
	ErrKindInternal   = "internal"
)

// WorkerError is the serializable form of a provider failure. The
// kind-specific fields let the parent rebuild the original error type.
type WorkerError struct {
	Kind     string `json:"kind"`
	Provider string `json:"provider,omitempty"`
	Message  string `json:"message"`

	// Processing errors.
	Status int `json:"status,omitempty"`

	// Conversion errors.
	DocID    string `json:"doc_id,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

func (e *WorkerError) Error() string { return e.Message }

// Runner decides where provider work executes.
type Runner struct {
	threshold int64
	logger    *zap.Logger

	// execPath is the binary to spawn; defaults to the running one.
	execPath string
}

// NewRunner returns a runner with the given offload threshold; zero or
// negative picks the default.
func NewRunner(threshold int64, logger *zap.Logger) *Runner {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return &Runner{
		threshold: threshold,
		logger:    logger.Named("isolation"),
		execPath:  exe,
	}
}

// offload reports whether the job should run in a child process.
func (r *Runner) offload(provider formats.Provider, file sourcefile.SourceFile) bool {
	if !provider.Multiprocessable() {
		return false
	}
	size, err := file.Size()
	if err != nil {
		return false
	}
	return size >= r.threshold
}

// ProcessFile chunks the file with the provider, in a child process for
// large files.
func (r *Runner) ProcessFile(ctx context.Context, provider formats.Provider, file sourcefile.SourceFile, params formats.SplitParams) ([]chunk.Chunk, error) {
	if !r.offload(provider, file) {
		return provider.ProcessFile(ctx, file, params)
	}

	resp, err := r.spawn(ctx, Request{Op: OpProcess, Provider: provider.Name(), File: refFromFile(file), Params: params})
	if err != nil {
		return nil, err
	}
	return resp.Chunks, nil
}

// ConvertToPDF produces the PDF rendition, in a child process for large
// files.
func (r *Runner) ConvertToPDF(ctx context.Context, provider formats.Provider, file sourcefile.SourceFile) (sourcefile.SourceFile, error) {
	if !r.offload(provider, file) {
		return provider.ConvertToPDF(ctx, file)
	}

	resp, err := r.spawn(ctx, Request{Op: OpConvert, Provider: provider.Name(), File: refFromFile(file)})
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	if resp.File == nil {
		return sourcefile.SourceFile{}, fmt.Errorf("worker returned no file")
	}
	return resp.File.file(), nil
}

func (r *Runner) spawn(ctx context.Context, req Request) (*Response, error) {
	r.logger.Debug("offloading to worker",
		zap.String("op", req.Op),
		zap.String("provider", req.Provider),
		zap.String("doc_id", req.File.ID),
	)

	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode worker request: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.execPath, WorkerCommand)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("worker process failed: %w: %s", err, stderr.String())
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode worker response: %w", err)
	}
	if resp.Error != nil {
		return nil, rebuildError(resp.Error)
	}
	return &resp, nil
}

// rebuildError converts a serialized worker failure back into the
// error type the service layer matches on.
func rebuildError(we *WorkerError) error {
	switch we.Kind {
	case ErrKindProcessing:
		return &formats.ProcessingError{Provider: we.Provider, Status: we.Status, Err: we}
	case ErrKindConversion:
		return &formats.ConversionError{
			DocID:    we.DocID,
			ExitCode: we.ExitCode,
			Stdout:   we.Stdout,
			Stderr:   we.Stderr,
		}
	default:
		return we
	}
}
