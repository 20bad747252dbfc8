// Package store orchestrates ingestion and retrieval: format dispatch,
// optional PDF archival, chunk enrichment, batched indexing and search.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/config"
	"github.com/fyrsmithlabs/shelfd/internal/filestore"
	"github.com/fyrsmithlabs/shelfd/internal/formats"
	"github.com/fyrsmithlabs/shelfd/internal/isolation"
	"github.com/fyrsmithlabs/shelfd/internal/metrics"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
	"github.com/fyrsmithlabs/shelfd/internal/vectorstore"
)

// ErrFileStoreDisabled indicates a PDF download request without a
// configured blob store.
var ErrFileStoreDisabled = errors.New("file store is not configured")

// VectorStores resolves a vector store per logical index name.
// *vectorstore.Provider is the production implementation.
type VectorStores interface {
	Store(ctx context.Context, indexName string) (vectorstore.Store, error)
}

// Service is the ingestion and retrieval orchestrator.
type Service struct {
	cfg      *config.Config
	registry *formats.Registry
	runner   *isolation.Runner
	stores   VectorStores
	files    filestore.Store
	logger   *zap.Logger

	// sem bounds concurrently processed ingestions.
	sem chan struct{}
}

// NewService wires the orchestrator. files may be nil; PDF archival and
// downloads are then disabled.
func NewService(
	cfg *config.Config,
	registry *formats.Registry,
	runner *isolation.Runner,
	stores VectorStores,
	files filestore.Store,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		registry: registry,
		runner:   runner,
		stores:   stores,
		files:    files,
		logger:   logger.Named("store"),
		sem:      make(chan struct{}, cfg.Workers),
	}
}

// Extensions returns every supported file extension.
func (s *Service) Extensions() []string {
	return s.registry.Extensions()
}

// acquire takes a worker slot, honoring cancellation.
func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) release() {
	<-s.sem
}

// AddFile chunks and indexes one file under its document id. With a
// blob store configured, the file is first converted to PDF; the PDF is
// both the chunking source and the archived rendition, so downloads
// match what was indexed.
func (s *Service) AddFile(ctx context.Context, file sourcefile.SourceFile, bucket, indexName string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	start := time.Now()
	provider, ok := s.registry.Find(file)
	if !ok {
		return formats.ErrUnsupportedFormat
	}
	s.logger.Info("start adding file",
		zap.String("doc_id", file.ID),
		zap.String("format", provider.Name()),
		zap.String("bucket", bucket),
	)

	chunks, err := s.chunkFile(ctx, provider, file)
	if err != nil {
		metrics.FilesFailed.Inc()
		return err
	}
	s.logger.Info("chunked file", zap.String("doc_id", file.ID), zap.Int("chunks", len(chunks)))

	if err := s.indexChunks(ctx, file, provider, chunks, bucket, indexName); err != nil {
		metrics.FilesFailed.Inc()
		return err
	}

	metrics.FilesProcessed.Inc()
	metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("completed file", zap.String("doc_id", file.ID), zap.Duration("took", time.Since(start)))
	return nil
}

// chunkFile produces the chunks to index. The PDF detour only happens
// when the rendition will actually be stored.
func (s *Service) chunkFile(ctx context.Context, provider formats.Provider, file sourcefile.SourceFile) ([]chunk.Chunk, error) {
	if s.files == nil {
		return s.runner.ProcessFile(ctx, provider, file, formats.SplitParams{})
	}

	pdf, err := s.runner.ConvertToPDF(ctx, provider, file)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := pdf.Delete(); err != nil {
			s.logger.Warn("failed to delete pdf rendition", zap.String("doc_id", file.ID), zap.Error(err))
		}
	}()
	s.logger.Info("converted file to pdf", zap.String("doc_id", file.ID))

	pdfProvider, _ := s.registry.ByName("pdf")
	chunks, err := s.runner.ProcessFile(ctx, pdfProvider, pdf, formats.SplitParams{})
	if err != nil {
		return nil, err
	}

	if err := s.files.AddDocument(ctx, pdf); err != nil {
		return nil, fmt.Errorf("failed to store pdf rendition: %w", err)
	}
	s.logger.Info("saved pdf rendition", zap.String("doc_id", file.ID))
	return chunks, nil
}

// indexChunks enriches and writes the chunks in batches. Identity tags
// always win over whatever the provider put in the metadata.
func (s *Service) indexChunks(ctx context.Context, file sourcefile.SourceFile, provider formats.Provider, chunks []chunk.Chunk, bucket, indexName string) error {
	if len(chunks) == 0 {
		return nil
	}

	store, err := s.stores.Store(ctx, indexName)
	if err != nil {
		return err
	}

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(chunks)
	}
	numBatches := (len(chunks) + batchSize - 1) / batchSize

	tags := map[string]any{
		chunk.KeyFormat:   provider.Name(),
		chunk.KeyMimeType: file.MimeType,
		chunk.KeyDocID:    file.ID,
		chunk.KeyBucket:   bucket,
		chunk.KeySource:   file.FileName,
	}

	for i := 0; i < numBatches; i++ {
		end := (i + 1) * batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := make([]chunk.Chunk, 0, end-i*batchSize)
		for _, c := range chunks[i*batchSize : end] {
			batch = append(batch, c.WithMetadata(tags))
		}

		s.logger.Info("adding chunk batch",
			zap.String("doc_id", file.ID),
			zap.Int("size", len(batch)),
			zap.String("progress", fmt.Sprintf("%d/%d", i+1, numBatches)),
		)
		if err := store.AddDocuments(ctx, batch); err != nil {
			return fmt.Errorf("failed to add batch %d/%d: %w", i+1, numBatches, err)
		}
		metrics.ChunksIndexed.Add(float64(len(batch)))
	}
	return nil
}

// Search returns the chunks most similar to the query. Each chunk runs
// through its provider's clean-up hook; the bucket tag is internal
// routing state and is stripped from the results.
func (s *Service) Search(ctx context.Context, query, bucket string, take int, docIDs []string, indexName string) ([]chunk.Chunk, error) {
	store, err := s.stores.Store(ctx, indexName)
	if err != nil {
		return nil, err
	}

	s.logger.Info("similarity search", zap.String("bucket", bucket), zap.Int("take", take))
	results, err := store.SimilaritySearch(ctx, query, take, vectorstore.Filter{Bucket: bucket, DocIDs: docIDs})
	if err != nil {
		return nil, err
	}

	for i, c := range results {
		if provider, ok := s.registry.ByName(c.Format()); ok {
			c = provider.CleanUp(c)
		}
		delete(c.Metadata, chunk.KeyBucket)
		results[i] = c
	}
	return results, nil
}

// GetDocumentsContent returns the text of the given chunks. PDF chunks
// come back in page order; chunks without a page sort last.
func (s *Service) GetDocumentsContent(ctx context.Context, ids []string, indexName string) ([]string, error) {
	store, err := s.stores.Store(ctx, indexName)
	if err != nil {
		return nil, err
	}

	docs, err := store.GetDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fetched chunks", zap.Int("requested", len(ids)), zap.Int("found", len(docs)))

	if len(docs) > 0 && docs[0].Format() == "pdf" {
		sort.SliceStable(docs, func(i, j int) bool {
			pi, iok := docs[i].Page()
			pj, jok := docs[j].Page()
			if !iok {
				return false
			}
			if !jok {
				return true
			}
			return pi < pj
		})
	}

	content := make([]string, len(docs))
	for i, d := range docs {
		content[i] = d.Content
	}
	return content, nil
}

// GetDocumentPDF returns the archived PDF rendition of a document.
func (s *Service) GetDocumentPDF(ctx context.Context, docID string) (sourcefile.SourceFile, error) {
	if s.files == nil {
		return sourcefile.SourceFile{}, ErrFileStoreDisabled
	}
	s.logger.Info("get pdf rendition", zap.String("doc_id", docID))
	return s.files.GetDocument(ctx, docID)
}

// DeleteFile removes a document's chunks and its archived rendition.
func (s *Service) DeleteFile(ctx context.Context, docID, indexName string) error {
	store, err := s.stores.Store(ctx, indexName)
	if err != nil {
		return err
	}

	s.logger.Info("deleting chunks", zap.String("doc_id", docID))
	if err := store.Delete(ctx, docID); err != nil {
		return err
	}

	if s.files != nil {
		s.logger.Info("deleting pdf rendition", zap.String("doc_id", docID))
		if err := s.files.Delete(ctx, docID); err != nil && !errors.Is(err, filestore.ErrNotFound) {
			return err
		}
	}
	return nil
}
