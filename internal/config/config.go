// Package config provides environment-based configuration for shelfd.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Vector store backends selected by StoreType.
const (
	StorePGVector = "pgvector"
	StoreQdrant   = "qdrant"
	StoreDevNull  = "dev-null"
)

// Blob store backends selected by FileStoreType. Empty disables the feature.
const (
	FileStoreFilesystem = "filesystem"
	FileStoreS3         = "s3"
	FileStoreDevNull    = "dev-null"
)

// ErrInvalidConfig indicates a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every recognised option. All fields map to environment
// variables of the same name, uppercased (BATCH_SIZE, STORE_TYPE, ...).
type Config struct {
	// HTTP surface.
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// MetricsPort exposes Prometheus metrics on a dedicated listener
	// when set.
	MetricsPort int `koanf:"metrics_port"`

	// Workers bounds the number of concurrently processed ingestions.
	Workers int `koanf:"workers"`

	// BatchSize is the vector insertion batch; 0 means one batch.
	BatchSize int `koanf:"batch_size"`

	// FilesizeThreshold is the byte size above which provider work is
	// offloaded to a spawned worker process.
	FilesizeThreshold int64 `koanf:"filesize_threshold"`

	// Vector store selection and backends.
	StoreType                string `koanf:"store_type"`
	StorePGVectorURL         Secret `koanf:"store_pgvector_url"`
	StoreQdrantHost          string `koanf:"store_qdrant_host"`
	StoreQdrantPort          int    `koanf:"store_qdrant_port"`
	StoreQdrantAPIKey        Secret `koanf:"store_qdrant_api_key"`
	StoreCollectionName      string `koanf:"store_collection_name"`
	StoreVectorSize          int    `koanf:"store_vector_size"`

	// Blob store selection and backends.
	FileStoreType               string `koanf:"file_store_type"`
	FileStoreFilesystemBasepath string `koanf:"file_store_filesystem_basepath"`
	FileStoreS3EndpointURL      string `koanf:"file_store_s3_endpoint_url"`
	FileStoreS3AccessKeyID      string `koanf:"file_store_s3_access_key_id"`
	FileStoreS3SecretAccessKey  Secret `koanf:"file_store_s3_secret_access_key"`
	FileStoreS3RegionName       string `koanf:"file_store_s3_region_name"`
	FileStoreS3BucketName       string `koanf:"file_store_s3_bucket_name"`

	// External embedder (OpenAI-compatible endpoint).
	EmbeddingsBaseURL string `koanf:"embeddings_base_url"`
	EmbeddingsAPIKey  Secret `koanf:"embeddings_api_key"`
	EmbeddingsModel   string `koanf:"embeddings_model"`

	// Logging.
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

// Load reads configuration from the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.FilesizeThreshold == 0 {
		cfg.FilesizeThreshold = 100_000
	}
	if cfg.StoreType == "" {
		cfg.StoreType = StoreDevNull
	}
	if cfg.StoreCollectionName == "" {
		cfg.StoreCollectionName = "shelfd_chunks"
	}
	if cfg.StoreVectorSize == 0 {
		cfg.StoreVectorSize = 1536
	}
	if cfg.StoreQdrantHost == "" {
		cfg.StoreQdrantHost = "localhost"
	}
	if cfg.StoreQdrantPort == 0 {
		cfg.StoreQdrantPort = 6334
	}
	if cfg.EmbeddingsModel == "" {
		cfg.EmbeddingsModel = "text-embedding-3-small"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
}

// Validate checks option combinations that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.StoreType {
	case StorePGVector:
		if !c.StorePGVectorURL.IsSet() {
			return fmt.Errorf("%w: STORE_PGVECTOR_URL is required for store_type=pgvector", ErrInvalidConfig)
		}
	case StoreQdrant, StoreDevNull:
	default:
		return fmt.Errorf("%w: unsupported store_type %q", ErrInvalidConfig, c.StoreType)
	}

	switch c.FileStoreType {
	case "":
		// Blob storage is an optional feature.
	case FileStoreFilesystem:
		if c.FileStoreFilesystemBasepath == "" {
			return fmt.Errorf("%w: FILE_STORE_FILESYSTEM_BASEPATH is required for file_store_type=filesystem", ErrInvalidConfig)
		}
	case FileStoreS3:
		if c.FileStoreS3BucketName == "" {
			return fmt.Errorf("%w: FILE_STORE_S3_BUCKET_NAME is required for file_store_type=s3", ErrInvalidConfig)
		}
	case FileStoreDevNull:
	default:
		return fmt.Errorf("%w: unsupported file_store_type %q", ErrInvalidConfig, c.FileStoreType)
	}

	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must be >= 0", ErrInvalidConfig)
	}
	if c.FilesizeThreshold < 0 {
		return fmt.Errorf("%w: filesize_threshold must be >= 0", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1", ErrInvalidConfig)
	}
	return nil
}
