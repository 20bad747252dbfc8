package sourcefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsID(t *testing.T) {
	f := New("", "/tmp/x", "text/plain", "x.txt")
	assert.NotEmpty(t, f.ID)

	g := New("fixed", "/tmp/x", "text/plain", "x.txt")
	assert.Equal(t, "fixed", g.ID)
}

func TestExt(t *testing.T) {
	assert.Equal(t, "pdf", SourceFile{FileName: "report.pdf"}.Ext())
	assert.Equal(t, "gz", SourceFile{FileName: "archive.tar.gz"}.Ext())
	assert.Equal(t, "", SourceFile{FileName: "Makefile"}.Ext())
}

func TestTempRootEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(TempRootEnv, dir)
	assert.Equal(t, dir, TempRoot())
}

func TestNewTemp(t *testing.T) {
	t.Setenv(TempRootEnv, t.TempDir())

	f, err := NewTemp([]byte("content"), "txt")
	require.NoError(t, err)
	defer os.Remove(f.Path)

	assert.Equal(t, f.ID+".txt", f.FileName)

	buf, err := f.Buffer()
	require.NoError(t, err)
	assert.Equal(t, "content", string(buf))

	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)
}

func TestNewPathRejectsEscape(t *testing.T) {
	t.Setenv(TempRootEnv, t.TempDir())

	_, err := NewPath("../../etc/passwd", "")
	require.ErrorIs(t, err, ErrPathEscape)
}

func TestWithTempDeletesOnSuccess(t *testing.T) {
	t.Setenv(TempRootEnv, t.TempDir())

	var path string
	err := WithTemp([]byte("x"), "txt", "text/plain", "orig.txt", func(f SourceFile) error {
		path = f.Path
		assert.Equal(t, "text/plain", f.MimeType)
		assert.Equal(t, "orig.txt", f.FileName)
		_, statErr := os.Stat(path)
		return statErr
	})
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWithTempDeletesOnError(t *testing.T) {
	t.Setenv(TempRootEnv, t.TempDir())

	var path string
	err := WithTemp([]byte("x"), "txt", "", "", func(f SourceFile) error {
		path = f.Path
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteWithDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "conv")
	require.NoError(t, os.Mkdir(dir, 0o750))
	path := filepath.Join(dir, "out.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf"), 0o600))

	f := SourceFile{Path: path, DeleteDir: true}
	require.NoError(t, f.Delete())

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
