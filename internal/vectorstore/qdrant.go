package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/embeddings"
)

// QdrantStore keeps chunks as points in a Qdrant collection, reached
// over the native gRPC transport (port 6334, not the HTTP REST port).
type QdrantStore struct {
	client     *qdrant.Client
	embedder   embeddings.Embedder
	collection string
	vectorSize uint64
	logger     *zap.Logger

	// ownsClient is false when the client is shared with other indexes.
	ownsClient bool
}

// QdrantConfig configures the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port. Default 6334.
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// Collection is the point collection name; created if missing.
	Collection string

	// VectorSize is the embedding dimensionality. Must match the
	// embedder output.
	VectorSize uint64
}

// maxGRPCMessageSize accommodates large chunk batches in one upsert.
const maxGRPCMessageSize = 50 * 1024 * 1024

// NewQdrantStore connects, verifies the server is healthy and ensures
// the collection exists.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, embedder embeddings.Embedder, logger *zap.Logger) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxGRPCMessageSize),
				grpc.MaxCallSendMsgSize(maxGRPCMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &QdrantStore{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
		logger:     logger.Named("vectorstore.qdrant"),
		ownsClient: true,
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(healthCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if err := s.ensureCollection(ctx, cfg.Collection); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// newQdrantIndex returns a store for another collection on the same
// client.
func (s *QdrantStore) newQdrantIndex(ctx context.Context, collection string) (*QdrantStore, error) {
	idx := &QdrantStore{
		client:     s.client,
		embedder:   s.embedder,
		collection: collection,
		vectorSize: s.vectorSize,
		logger:     s.logger,
	}
	if err := idx.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	s.logger.Info("created collection", zap.String("collection", name), zap.Uint64("vector_size", s.vectorSize))
	return nil
}

// AddDocuments embeds and upserts one batch of chunks as points. The
// chunk content and full metadata travel in the point payload.
func (s *QdrantStore) AddDocuments(ctx context.Context, chunks []chunk.Chunk) error {
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

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		id := uuid.NewString()
		payload := map[string]*qdrant.Value{
			"content": qdrant.NewValueString(c.Content),
		}
		for k, v := range c.Metadata {
			switch val := v.(type) {
			case string:
				payload[k] = qdrant.NewValueString(val)
			case int:
				payload[k] = qdrant.NewValueInt(int64(val))
			case int64:
				payload[k] = qdrant.NewValueInt(val)
			case float64:
				payload[k] = qdrant.NewValueDouble(val)
			case bool:
				payload[k] = qdrant.NewValueBool(val)
			}
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points to %s: %w", s.collection, err)
	}
	return nil
}

// Delete removes all points tagged with the document id.
func (s *QdrantStore) Delete(ctx context.Context, docID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(chunk.KeyDocID, docID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for %s: %w", docID, err)
	}
	return nil
}

// SimilaritySearch embeds the query and returns the k nearest points
// matching the filter.
func (s *QdrantStore) SimilaritySearch(ctx context.Context, query string, k int, filter Filter) ([]chunk.Chunk, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var conditions []*qdrant.Condition
	if filter.Bucket != "" {
		conditions = append(conditions, qdrant.NewMatch(chunk.KeyBucket, filter.Bucket))
	}
	if len(filter.DocIDs) > 0 {
		conditions = append(conditions, qdrant.NewMatchKeywords(chunk.KeyDocID, filter.DocIDs...))
	}
	var qf *qdrant.Filter
	if len(conditions) > 0 {
		qf = &qdrant.Filter{Must: conditions}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search in %s failed: %w", s.collection, err)
	}

	out := make([]chunk.Chunk, 0, len(results))
	for _, point := range results {
		out = append(out, pointToChunk(point.Id, point.Payload))
	}
	return out, nil
}

// GetDocuments returns the chunks for the given point ids. Malformed
// ids are skipped.
func (s *QdrantStore) GetDocuments(ctx context.Context, ids []string) ([]chunk.Chunk, error) {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}
	if len(pointIDs) == 0 {
		return nil, nil
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch points from %s: %w", s.collection, err)
	}

	out := make([]chunk.Chunk, 0, len(points))
	for _, point := range points {
		out = append(out, pointToChunk(point.Id, point.Payload))
	}
	return out, nil
}

func pointToChunk(id *qdrant.PointId, payload map[string]*qdrant.Value) chunk.Chunk {
	var content string
	metadata := map[string]any{}
	for k, v := range payload {
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			if k == "content" {
				content = val.StringValue
				continue
			}
			metadata[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			metadata[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			metadata[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			metadata[k] = val.BoolValue
		}
	}
	if id != nil {
		if u := id.GetUuid(); u != "" {
			metadata[chunk.KeyID] = u
		}
	}
	return chunk.New(content, metadata)
}

// Close releases the gRPC connection when this store owns it.
func (s *QdrantStore) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}
