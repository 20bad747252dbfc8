package filestore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelfd/internal/config"
)

// New creates the blob store selected by FILE_STORE_TYPE. An unset type
// returns (nil, nil): blob storage is an optional feature and the service
// layer treats a nil store as "disabled".
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.FileStoreType {
	case "":
		return nil, nil
	case config.FileStoreFilesystem:
		return NewFilesystemStore(cfg.FileStoreFilesystemBasepath)
	case config.FileStoreS3:
		return NewS3Store(ctx, cfg, logger)
	case config.FileStoreDevNull:
		return NewDevNullStore(), nil
	default:
		return nil, fmt.Errorf("unsupported file store type: %s", cfg.FileStoreType)
	}
}
