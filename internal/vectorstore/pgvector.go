package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/embeddings"
)

// identifierRe keeps table names to safe SQL identifier characters.
var identifierRe = regexp.MustCompile(`[^a-z0-9_]+`)

// PGVectorStore keeps chunks in a PostgreSQL table with a pgvector
// embedding column. One store maps to one table (one logical index).
type PGVectorStore struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	table    string
	logger   *zap.Logger

	// ownsPool is false when the pool is shared with other indexes.
	ownsPool bool
}

// PGVectorConfig configures a pgvector-backed store.
type PGVectorConfig struct {
	// URL is the PostgreSQL connection string.
	URL string

	// Table is the chunk table name; created if missing.
	Table string

	// VectorSize is the embedding dimensionality.
	VectorSize int
}

// NewPGVectorStore connects, ensures the vector extension, table and
// indexes exist, and returns the store.
func NewPGVectorStore(ctx context.Context, cfg PGVectorConfig, embedder embeddings.Embedder, logger *zap.Logger) (*PGVectorStore, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &PGVectorStore{
		pool:     pool,
		embedder: embedder,
		table:    sanitizeTable(cfg.Table),
		logger:   logger.Named("vectorstore.pgvector"),
		ownsPool: true,
	}
	if err := s.ensureSchema(ctx, cfg.VectorSize); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// newPGVectorIndex returns a store for another logical index sharing the
// same pool.
func (s *PGVectorStore) newPGVectorIndex(ctx context.Context, table string, vectorSize int) (*PGVectorStore, error) {
	idx := &PGVectorStore{
		pool:     s.pool,
		embedder: s.embedder,
		table:    sanitizeTable(table),
		logger:   s.logger,
	}
	if err := idx.ensureSchema(ctx, vectorSize); err != nil {
		return nil, err
	}
	return idx, nil
}

func sanitizeTable(name string) string {
	name = identifierRe.ReplaceAllString(strings.ToLower(name), "_")
	if name == "" {
		name = "shelfd_chunks"
	}
	return name
}

func (s *PGVectorStore) ensureSchema(ctx context.Context, vectorSize int) error {
	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS %[1]s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			content TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			bucket TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%[2]d)
		);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_doc_id ON %[1]s(doc_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_bucket ON %[1]s(bucket);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding ON %[1]s
		USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64);
	`, s.table, vectorSize)

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema for %s: %w", s.table, err)
	}
	return nil
}

// AddDocuments embeds and inserts one batch of chunks.
func (s *PGVectorStore) AddDocuments(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return ErrEmptyBatch
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	batch := &pgx.Batch{}
	insert := fmt.Sprintf(
		`INSERT INTO %s (id, content, doc_id, bucket, metadata, embedding) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.table,
	)
	for i, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		batch.Queue(insert, uuid.NewString(), c.Content, c.DocID(), s.bucketOf(c), meta, pgvector.NewVector(vectors[i]))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk batch: %w", err)
		}
	}
	return nil
}

func (s *PGVectorStore) bucketOf(c chunk.Chunk) string {
	if b, ok := c.Metadata[chunk.KeyBucket].(string); ok {
		return b
	}
	return ""
}

// Delete removes all chunks tagged with the document id.
func (s *PGVectorStore) Delete(ctx context.Context, docID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, docID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", docID, err)
	}
	s.logger.Debug("deleted chunks", zap.String("doc_id", docID), zap.Int64("count", tag.RowsAffected()))
	return nil
}

// SimilaritySearch embeds the query and returns the k nearest chunks
// matching the filter, by cosine distance.
func (s *PGVectorStore) SimilaritySearch(ctx context.Context, query string, k int, filter Filter) ([]chunk.Chunk, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	sql := fmt.Sprintf(`
		SELECT id, content, metadata FROM %s
		WHERE ($1 = '' OR bucket = $1)
		  AND (cardinality($2::text[]) = 0 OR doc_id = ANY($2))
		ORDER BY embedding <=> $3
		LIMIT $4`, s.table)

	docIDs := filter.DocIDs
	if docIDs == nil {
		docIDs = []string{}
	}
	rows, err := s.pool.Query(ctx, sql, filter.Bucket, docIDs, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// GetDocuments returns the chunks for the given primary ids. Ids that
// are not UUIDs cannot match a row and are dropped up front; binding
// them against the UUID column would fail the whole query.
func (s *PGVectorStore) GetDocuments(ctx context.Context, ids []string) ([]chunk.Chunk, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	sql := fmt.Sprintf(`SELECT id, content, metadata FROM %s WHERE id = ANY($1)`, s.table)
	rows, err := s.pool.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func validUUIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func scanChunks(rows pgx.Rows) ([]chunk.Chunk, error) {
	var out []chunk.Chunk
	for rows.Next() {
		var (
			id      uuid.UUID
			content string
			meta    []byte
		)
		if err := rows.Scan(&id, &content, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		metadata := map[string]any{}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &metadata); err != nil {
				return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
			}
		}
		metadata[chunk.KeyID] = id.String()
		out = append(out, chunk.New(content, metadata))
	}
	return out, rows.Err()
}

// Close releases the connection pool when this store owns it.
func (s *PGVectorStore) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}
