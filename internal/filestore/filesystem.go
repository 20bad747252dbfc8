package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// FilesystemStore keeps objects as files under a root directory.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore ensures the root directory exists and returns a store
// rooted there.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if root == "" {
		return nil, errors.New("filesystem store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store root %s: %w", abs, err)
	}
	return &FilesystemStore{root: abs}, nil
}

// objectPath joins the root with the basename of id and verifies the
// resolved path stays inside the root.
func (s *FilesystemStore) objectPath(id string) (string, error) {
	base := filepath.Base(filepath.Clean(id))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, id)
	}

	joined := filepath.Clean(filepath.Join(s.root, base))
	rel, err := filepath.Rel(s.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, id)
	}
	return joined, nil
}

// AddDocument stores the file bytes under the document id.
func (s *FilesystemStore) AddDocument(_ context.Context, doc sourcefile.SourceFile) error {
	path, err := s.objectPath(doc.ID)
	if err != nil {
		return err
	}
	buf, err := doc.Buffer()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o640); err != nil {
		return fmt.Errorf("write object %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes the object for the id.
func (s *FilesystemStore) Delete(_ context.Context, docID string) error {
	path, err := s.objectPath(docID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return os.Remove(path)
}

// GetDocument copies the stored object into a caller-owned temp file.
func (s *FilesystemStore) GetDocument(_ context.Context, docID string) (sourcefile.SourceFile, error) {
	path, err := s.objectPath(docID)
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sourcefile.SourceFile{}, ErrNotFound
		}
		return sourcefile.SourceFile{}, err
	}

	out, err := sourcefile.NewTemp(buf, "pdf")
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	out.ID = docID
	out.MimeType = "application/pdf"
	out.FileName = docID + ".pdf"
	return out, nil
}

// Exists reports whether an object is stored under the id.
func (s *FilesystemStore) Exists(_ context.Context, docID string) (bool, error) {
	path, err := s.objectPath(docID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
