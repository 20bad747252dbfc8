package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/config"
	"github.com/fyrsmithlabs/shelfd/internal/filestore"
	"github.com/fyrsmithlabs/shelfd/internal/formats"
	"github.com/fyrsmithlabs/shelfd/internal/isolation"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
	"github.com/fyrsmithlabs/shelfd/internal/vectorstore"
)

// fakeVectorStore records writes and serves canned reads.
type fakeVectorStore struct {
	batches       [][]chunk.Chunk
	deleted       []string
	searchResults []chunk.Chunk
	getResults    []chunk.Chunk
}

func (f *fakeVectorStore) AddDocuments(_ context.Context, chunks []chunk.Chunk) error {
	batch := make([]chunk.Chunk, len(chunks))
	copy(batch, chunks)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeVectorStore) Delete(_ context.Context, docID string) error {
	f.deleted = append(f.deleted, docID)
	return nil
}

func (f *fakeVectorStore) SimilaritySearch(context.Context, string, int, vectorstore.Filter) ([]chunk.Chunk, error) {
	return f.searchResults, nil
}

func (f *fakeVectorStore) GetDocuments(context.Context, []string) ([]chunk.Chunk, error) {
	return f.getResults, nil
}

func (f *fakeVectorStore) Close() error { return nil }

// fakeStores hands out one store per index name.
type fakeStores struct {
	store   *fakeVectorStore
	indexes []string
}

func (f *fakeStores) Store(_ context.Context, indexName string) (vectorstore.Store, error) {
	f.indexes = append(f.indexes, indexName)
	return f.store, nil
}

// fakeFileStore is an in-memory blob store.
type fakeFileStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{objects: map[string][]byte{}}
}

func (f *fakeFileStore) AddDocument(_ context.Context, doc sourcefile.SourceFile) error {
	buf, err := doc.Buffer()
	if err != nil {
		return err
	}
	f.objects[doc.ID] = buf
	return nil
}

func (f *fakeFileStore) Delete(_ context.Context, docID string) error {
	if _, ok := f.objects[docID]; !ok {
		return filestore.ErrNotFound
	}
	delete(f.objects, docID)
	f.deleted = append(f.deleted, docID)
	return nil
}

func (f *fakeFileStore) GetDocument(_ context.Context, docID string) (sourcefile.SourceFile, error) {
	buf, ok := f.objects[docID]
	if !ok {
		return sourcefile.SourceFile{}, filestore.ErrNotFound
	}
	return sourcefile.NewTemp(buf, "pdf")
}

func (f *fakeFileStore) Exists(_ context.Context, docID string) (bool, error) {
	_, ok := f.objects[docID]
	return ok, nil
}

func newTestService(t *testing.T, batchSize int, files filestore.Store) (*Service, *fakeStores) {
	t.Helper()
	cfg := &config.Config{Workers: 2, BatchSize: batchSize}
	stores := &fakeStores{store: &fakeVectorStore{}}
	runner := isolation.NewRunner(1<<30, zap.NewNop())
	return NewService(cfg, formats.DefaultRegistry(), runner, stores, files, zap.NewNop()), stores
}

func writeSourceFile(t *testing.T, name, content string) sourcefile.SourceFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return sourcefile.SourceFile{ID: "doc-1", Path: path, MimeType: "text/plain", FileName: name}
}

func TestAddFileUnsupportedFormat(t *testing.T) {
	svc, _ := newTestService(t, 0, nil)
	file := writeSourceFile(t, "weird.xyzzy", "content")
	file.MimeType = "application/x-unknown"

	err := svc.AddFile(context.Background(), file, "", "")
	require.ErrorIs(t, err, formats.ErrUnsupportedFormat)
}

func TestAddFileEnrichesAndBatches(t *testing.T) {
	svc, stores := newTestService(t, 2, nil)

	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("a paragraph that pads the file out to several chunks\n\n")
	}
	file := writeSourceFile(t, "notes.txt", b.String())

	require.NoError(t, svc.AddFile(context.Background(), file, "tenant-a", "idx"))
	require.Equal(t, []string{"idx"}, stores.indexes)

	var total int
	for _, batch := range stores.store.batches {
		assert.LessOrEqual(t, len(batch), 2)
		total += len(batch)
		for _, c := range batch {
			assert.Equal(t, "plain", c.Metadata[chunk.KeyFormat])
			assert.Equal(t, "text/plain", c.Metadata[chunk.KeyMimeType])
			assert.Equal(t, "doc-1", c.Metadata[chunk.KeyDocID])
			assert.Equal(t, "tenant-a", c.Metadata[chunk.KeyBucket])
			assert.Equal(t, "notes.txt", c.Metadata[chunk.KeySource])
		}
	}
	assert.Greater(t, total, 2)
	assert.Greater(t, len(stores.store.batches), 1)
}

func TestAddFileSingleBatchByDefault(t *testing.T) {
	svc, stores := newTestService(t, 0, nil)
	file := writeSourceFile(t, "notes.txt", "short note")

	require.NoError(t, svc.AddFile(context.Background(), file, "", ""))
	assert.Len(t, stores.store.batches, 1)
}

func TestSearchStripsBucketTag(t *testing.T) {
	svc, stores := newTestService(t, 0, nil)
	stores.store.searchResults = []chunk.Chunk{
		chunk.New("hit", map[string]any{
			chunk.KeyBucket: "tenant-a",
			chunk.KeySource: "notes.txt",
		}),
	}

	results, err := svc.Search(context.Background(), "query", "tenant-a", 5, nil, "")
	require.NoError(t, err)
	require.Len(t, results, 1)

	_, ok := results[0].Metadata[chunk.KeyBucket]
	assert.False(t, ok)
	assert.Equal(t, "notes.txt", results[0].Source())
}

// trimProvider trims result chunks after search.
type trimProvider struct {
	*formats.PlainProvider
}

func (trimProvider) Name() string { return "trim" }

func (trimProvider) CleanUp(c chunk.Chunk) chunk.Chunk {
	c.Content = strings.TrimSpace(c.Content)
	return c
}

func TestSearchAppliesProviderCleanUp(t *testing.T) {
	cfg := &config.Config{Workers: 2}
	stores := &fakeStores{store: &fakeVectorStore{}}
	registry := formats.NewRegistry(trimProvider{formats.NewPlainProvider()})
	svc := NewService(cfg, registry, isolation.NewRunner(1<<30, zap.NewNop()), stores, nil, zap.NewNop())

	stores.store.searchResults = []chunk.Chunk{
		chunk.New("  padded hit  ", map[string]any{
			chunk.KeyFormat: "trim",
			chunk.KeyBucket: "tenant-a",
		}),
	}

	results, err := svc.Search(context.Background(), "query", "tenant-a", 5, nil, "")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "padded hit", results[0].Content)
	_, ok := results[0].Metadata[chunk.KeyBucket]
	assert.False(t, ok)
}

func TestGetDocumentsContentSortsPDFByPage(t *testing.T) {
	svc, stores := newTestService(t, 0, nil)
	stores.store.getResults = []chunk.Chunk{
		chunk.New("page three", map[string]any{chunk.KeyFormat: "pdf", chunk.KeyPage: 3}),
		chunk.New("no page", map[string]any{chunk.KeyFormat: "pdf"}),
		chunk.New("page one", map[string]any{chunk.KeyFormat: "pdf", chunk.KeyPage: 1}),
	}

	content, err := svc.GetDocumentsContent(context.Background(), []string{"a", "b", "c"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"page one", "page three", "no page"}, content)
}

func TestGetDocumentsContentKeepsOrderForText(t *testing.T) {
	svc, stores := newTestService(t, 0, nil)
	stores.store.getResults = []chunk.Chunk{
		chunk.New("second", map[string]any{chunk.KeyFormat: "plain", chunk.KeyPage: 2}),
		chunk.New("first", map[string]any{chunk.KeyFormat: "plain", chunk.KeyPage: 1}),
	}

	content, err := svc.GetDocumentsContent(context.Background(), []string{"a", "b"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, content)
}

func TestGetDocumentPDFWithoutFileStore(t *testing.T) {
	svc, _ := newTestService(t, 0, nil)

	_, err := svc.GetDocumentPDF(context.Background(), "doc-1")
	require.ErrorIs(t, err, ErrFileStoreDisabled)
}

func TestGetDocumentPDFReturnsCallerOwnedFile(t *testing.T) {
	t.Setenv(sourcefile.TempRootEnv, t.TempDir())
	files := newFakeFileStore()
	files.objects["doc-1"] = []byte("%PDF-1.4 fake")
	svc, _ := newTestService(t, 0, files)

	pdf, err := svc.GetDocumentPDF(context.Background(), "doc-1")
	require.NoError(t, err)
	defer pdf.Delete()

	buf, err := pdf.Buffer()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(buf))
}

func TestDeleteFileRemovesChunksAndRendition(t *testing.T) {
	files := newFakeFileStore()
	files.objects["doc-1"] = []byte("pdf bytes")
	svc, stores := newTestService(t, 0, files)

	require.NoError(t, svc.DeleteFile(context.Background(), "doc-1", ""))
	assert.Equal(t, []string{"doc-1"}, stores.store.deleted)
	assert.Equal(t, []string{"doc-1"}, files.deleted)
}

func TestDeleteFileIgnoresMissingRendition(t *testing.T) {
	svc, stores := newTestService(t, 0, newFakeFileStore())

	require.NoError(t, svc.DeleteFile(context.Background(), "doc-2", ""))
	assert.Equal(t, []string{"doc-2"}, stores.store.deleted)
}

func TestExtensionsCoversKnownFormats(t *testing.T) {
	svc, _ := newTestService(t, 0, nil)

	exts := svc.Extensions()
	assert.Contains(t, exts, "pdf")
	assert.Contains(t, exts, "txt")
	assert.Contains(t, exts, "docx")
	assert.Contains(t, exts, "msg")
}

func TestAddFileHonorsCancelledContext(t *testing.T) {
	svc, _ := newTestService(t, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fill the only free slots so acquisition has to wait on the context.
	svc.sem <- struct{}{}
	svc.sem <- struct{}{}

	err := svc.AddFile(ctx, writeSourceFile(t, "notes.txt", "x"), "", "")
	require.ErrorIs(t, err, context.Canceled)
}
