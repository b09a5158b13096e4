package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "docqa.db", cfg.Storage.Path)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 100, cfg.Ingestion.QueueCapacity)
	assert.Equal(t, 1, cfg.Ingestion.Concurrency)
	assert.Equal(t, int64(10<<20), cfg.Ingestion.MaxFileSize)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, float32(0.7), cfg.Retrieval.MinSimilarity)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
ai:
  host: "http://llm:11434"
  chat_model: "llama3"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "http://llm:11434", cfg.AI.Host)
	assert.Equal(t, "llama3", cfg.AI.ChatModel)

	// Unset fields fall back to defaults; hosts inherit the shared host.
	assert.Equal(t, "http://llm:11434", cfg.AI.EmbeddingHost)
	assert.Equal(t, "http://llm:11434", cfg.AI.ChatHost)
	assert.Equal(t, "embeddinggemma", cfg.AI.EmbeddingModel)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
}

func TestLoadIngestionLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ingestion:
  max_file_size: 1048576
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(1<<20), cfg.Ingestion.MaxFileSize)
	assert.Equal(t, 100, cfg.Ingestion.QueueCapacity)
}

func TestLoadSplitHosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ai:
  embedding_host: "http://embed:11434"
  chat_host: "http://chat:11434"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://embed:11434", cfg.AI.EmbeddingHost)
	assert.Equal(t, "http://chat:11434", cfg.AI.ChatHost)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestAPIKeyResolution(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	assert.Equal(t, "sk-from-env", cfg.AI.APIKey())

	t.Setenv("OPENAI_API_KEY", "")
	assert.Equal(t, "none", cfg.AI.APIKey())
}
