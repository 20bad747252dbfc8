// Package sourcefile provides the SourceFile value type and scoped
// temporary files rooted under the configured temp directory.
package sourcefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrPathEscape indicates a file name that would resolve outside the temp root.
var ErrPathEscape = errors.New("path escapes temp root")

// TempRootEnv is the environment variable overriding the temp root.
const TempRootEnv = "TMP_FILES_ROOT"

// TempRoot returns the directory under which all temporary artifacts live.
func TempRoot() string {
	if root := os.Getenv(TempRootEnv); root != "" {
		return root
	}
	return os.TempDir()
}

// SourceFile names an on-disk byte stream with identity and type information.
//
// Instances are effectively immutable once constructed. Ownership of the
// underlying file rests with the current operation scope: Delete removes the
// file and, when DeleteDir is set, its containing directory.
type SourceFile struct {
	// ID is the stable document identity. Defaults to a fresh UUID.
	ID string

	// Path is the location of the bytes on disk. It must refer to a
	// readable regular file for the duration of any operation.
	Path string

	// MimeType is the declared MIME type; may be empty.
	MimeType string

	// FileName is the original name and drives extension-based dispatch.
	FileName string

	// DeleteDir signals that the parent directory belongs to this file
	// and should be removed together with it.
	DeleteDir bool
}

// New constructs a SourceFile with an explicit id.
func New(id, path, mimeType, fileName string) SourceFile {
	if id == "" {
		id = uuid.NewString()
	}
	return SourceFile{ID: id, Path: path, MimeType: mimeType, FileName: fileName}
}

// Size returns the current size of the file in bytes.
func (f SourceFile) Size() (int64, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", f.Path, err)
	}
	return info.Size(), nil
}

// Buffer reads and returns the full file content.
func (f SourceFile) Buffer() ([]byte, error) {
	buf, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return buf, nil
}

// Ext returns the file name suffix without the leading dot.
func (f SourceFile) Ext() string {
	return strings.TrimPrefix(filepath.Ext(f.FileName), ".")
}

// Delete removes the file, and its parent directory when DeleteDir is set.
func (f SourceFile) Delete() error {
	if err := os.Remove(f.Path); err != nil {
		return err
	}
	if f.DeleteDir {
		return os.Remove(filepath.Dir(f.Path))
	}
	return nil
}

// NewPath builds a fresh path under the temp root from baseName (a fresh
// UUID when empty) and an optional extension. The joined path is normalised
// and rejected with ErrPathEscape if it leaves the temp root.
func NewPath(baseName, extension string) (string, error) {
	if baseName == "" {
		baseName = uuid.NewString()
	}
	if extension != "" {
		baseName = baseName + "." + strings.TrimPrefix(extension, ".")
	}

	root := TempRoot()
	joined := filepath.Clean(filepath.Join(root, baseName))

	rel, err := filepath.Rel(root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, baseName)
	}
	return joined, nil
}

// NewTemp creates a new temporary file under the temp root, optionally
// seeded with buf. The extension is normalised to include a leading dot.
func NewTemp(buf []byte, extension string) (SourceFile, error) {
	id := uuid.NewString()
	fileName := id
	if extension != "" {
		if !strings.HasPrefix(extension, ".") {
			extension = "." + extension
		}
		fileName += extension
	}

	path, err := NewPath(fileName, "")
	if err != nil {
		return SourceFile{}, err
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return SourceFile{}, fmt.Errorf("write temp file: %w", err)
	}

	return SourceFile{ID: id, Path: path, FileName: fileName}, nil
}

// WithTemp writes buf into a fresh temporary file, invokes fn with the
// resulting SourceFile, and deletes the file on every exit path.
func WithTemp(buf []byte, extension, mimeType, fileName string, fn func(SourceFile) error) error {
	f, err := NewTemp(buf, extension)
	if err != nil {
		return err
	}
	defer os.Remove(f.Path)

	f.MimeType = mimeType
	if fileName != "" {
		f.FileName = fileName
	}
	return fn(f)
}
