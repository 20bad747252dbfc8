package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearKnownEnv blanks every recognised variable so ambient values do
// not leak into assertions.
func clearKnownEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST", "PORT", "METRICS_PORT", "WORKERS", "BATCH_SIZE", "FILESIZE_THRESHOLD",
		"STORE_TYPE", "STORE_PGVECTOR_URL", "STORE_QDRANT_HOST", "STORE_QDRANT_PORT",
		"STORE_QDRANT_API_KEY", "STORE_COLLECTION_NAME", "STORE_VECTOR_SIZE",
		"FILE_STORE_TYPE", "FILE_STORE_FILESYSTEM_BASEPATH",
		"EMBEDDINGS_BASE_URL", "EMBEDDINGS_API_KEY", "EMBEDDINGS_MODEL",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearKnownEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, int64(100_000), cfg.FilesizeThreshold)
	assert.Equal(t, StoreDevNull, cfg.StoreType)
	assert.Equal(t, "shelfd_chunks", cfg.StoreCollectionName)
	assert.Equal(t, 1536, cfg.StoreVectorSize)
	assert.Equal(t, "localhost", cfg.StoreQdrantHost)
	assert.Equal(t, 6334, cfg.StoreQdrantPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.FileStoreType)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearKnownEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_TYPE", "pgvector")
	t.Setenv("STORE_PGVECTOR_URL", "postgres://user:pw@localhost/db")
	t.Setenv("FILE_STORE_TYPE", "filesystem")
	t.Setenv("FILE_STORE_FILESYSTEM_BASEPATH", t.TempDir())
	t.Setenv("BATCH_SIZE", "64")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StorePGVector, cfg.StoreType)
	assert.Equal(t, "postgres://user:pw@localhost/db", cfg.StorePGVectorURL.Value())
	assert.Equal(t, 64, cfg.BatchSize)
}

func TestLoadPGVectorRequiresURL(t *testing.T) {
	clearKnownEnv(t)
	t.Setenv("STORE_TYPE", "pgvector")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreType: StoreDevNull,
			Workers:   1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown store type", func(c *Config) { c.StoreType = "oracle" }, true},
		{"filesystem without basepath", func(c *Config) { c.FileStoreType = FileStoreFilesystem }, true},
		{"s3 without bucket", func(c *Config) { c.FileStoreType = FileStoreS3 }, true},
		{"negative batch size", func(c *Config) { c.BatchSize = -1 }, true},
		{"negative threshold", func(c *Config) { c.FilesizeThreshold = -1 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())

	out, err := json.Marshal(struct{ Key Secret }{Key: s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
}

func TestSecretEmpty(t *testing.T) {
	var s Secret
	assert.Equal(t, "", s.String())
	assert.False(t, s.IsSet())
}
