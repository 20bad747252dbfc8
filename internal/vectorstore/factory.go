package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/config"
	"github.com/fyrsmithlabs/shelfd/internal/embeddings"
)

// Provider hands out Store instances per logical index name. The empty
// index name maps to the configured default collection. Stores are
// created once and cached; backends share one connection.
type Provider struct {
	cfg      *config.Config
	embedder embeddings.Embedder
	logger   *zap.Logger

	mu     sync.Mutex
	stores map[string]Store
}

// NewProvider validates the backend configuration and connects the
// default store eagerly, so misconfiguration fails at startup rather
// than on the first request.
func NewProvider(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, logger *zap.Logger) (*Provider, error) {
	p := &Provider{
		cfg:      cfg,
		embedder: embedder,
		logger:   logger,
		stores:   make(map[string]Store),
	}
	if _, err := p.Store(ctx, ""); err != nil {
		return nil, err
	}
	return p, nil
}

// Store returns the store for the given index name, creating it on
// first use.
func (p *Provider) Store(ctx context.Context, indexName string) (Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stores[indexName]; ok {
		return s, nil
	}

	collection := indexName
	if collection == "" {
		collection = p.cfg.StoreCollectionName
	}

	s, err := p.create(ctx, indexName, collection)
	if err != nil {
		return nil, err
	}
	p.stores[indexName] = s
	return s, nil
}

func (p *Provider) create(ctx context.Context, indexName, collection string) (Store, error) {
	switch p.cfg.StoreType {
	case config.StorePGVector:
		if base, ok := p.stores[""]; ok {
			return base.(*PGVectorStore).newPGVectorIndex(ctx, collection, p.cfg.StoreVectorSize)
		}
		return NewPGVectorStore(ctx, PGVectorConfig{
			URL:        p.cfg.StorePGVectorURL.Value(),
			Table:      collection,
			VectorSize: p.cfg.StoreVectorSize,
		}, p.embedder, p.logger)

	case config.StoreQdrant:
		if base, ok := p.stores[""]; ok {
			return base.(*QdrantStore).newQdrantIndex(ctx, collection)
		}
		return NewQdrantStore(ctx, QdrantConfig{
			Host:       p.cfg.StoreQdrantHost,
			Port:       p.cfg.StoreQdrantPort,
			APIKey:     p.cfg.StoreQdrantAPIKey.Value(),
			Collection: collection,
			VectorSize: uint64(p.cfg.StoreVectorSize),
		}, p.embedder, p.logger)

	case config.StoreDevNull:
		// One sink serves every index.
		if base, ok := p.stores[""]; ok {
			return base, nil
		}
		return NewDevNullStore(p.logger), nil

	default:
		return nil, fmt.Errorf("unsupported store type: %s", p.cfg.StoreType)
	}
}

// Close releases every store created by the provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	closed := map[Store]bool{}
	for name, s := range p.stores {
		if closed[s] {
			continue
		}
		closed[s] = true
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close store %q: %w", name, err)
		}
	}
	p.stores = map[string]Store{}
	return firstErr
}
