package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

func newTestStore(t *testing.T) *FilesystemStore {
	t.Helper()
	t.Setenv(sourcefile.TempRootEnv, t.TempDir())

	s, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func writeSource(t *testing.T, id, content string) sourcefile.SourceFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), id+".pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return sourcefile.SourceFile{ID: id, Path: path, MimeType: "application/pdf", FileName: id + ".pdf"}
}

func TestFilesystemRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	doc := writeSource(t, "doc-1", "pdf bytes")
	require.NoError(t, s.AddDocument(ctx, doc))

	exists, err := s.Exists(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	defer os.Remove(got.Path)

	assert.Equal(t, "doc-1", got.ID)
	assert.Equal(t, "application/pdf", got.MimeType)

	buf, err := got.Buffer()
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(buf))

	// The returned file is a copy; deleting it must not touch the store.
	require.NoError(t, os.Remove(got.Path))
	exists, err = s.Exists(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFilesystemOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.AddDocument(ctx, writeSource(t, "doc-1", "v1")))
	require.NoError(t, s.AddDocument(ctx, writeSource(t, "doc-1", "v2")))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	defer os.Remove(got.Path)

	buf, err := got.Buffer()
	require.NoError(t, err)
	assert.Equal(t, "v2", string(buf))
}

func TestFilesystemDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.AddDocument(ctx, writeSource(t, "doc-1", "x")))
	require.NoError(t, s.Delete(ctx, "doc-1"))

	exists, err := s.Exists(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.ErrorIs(t, s.Delete(ctx, "doc-1"), ErrNotFound)
}

func TestFilesystemGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocument(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystemPathEscape(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Traversal ids collapse to their base name instead of escaping.
	doc := writeSource(t, "safe", "x")
	doc.ID = "../../../etc/passwd"
	require.NoError(t, s.AddDocument(ctx, doc))

	exists, err := s.Exists(ctx, "passwd")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = os.Stat(filepath.Join(s.root, "..", "passwd"))
	assert.True(t, os.IsNotExist(err))
}

func TestFilesystemRequiresRoot(t *testing.T) {
	_, err := NewFilesystemStore("")
	require.Error(t, err)
}

func TestDevNull(t *testing.T) {
	ctx := context.Background()
	s := NewDevNullStore()

	require.NoError(t, s.AddDocument(ctx, sourcefile.SourceFile{ID: "x"}))
	require.NoError(t, s.Delete(ctx, "x"))

	exists, err := s.Exists(ctx, "x")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.GetDocument(ctx, "x")
	require.ErrorIs(t, err, ErrNotFound)
}
