// Package config loads the application configuration from YAML.
package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig configures the Badger database.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// AIConfig configures the embedding and chat services.
type AIConfig struct {
	Host           string `yaml:"host"`
	EmbeddingHost  string `yaml:"embedding_host,omitempty"`
	ChatHost       string `yaml:"chat_host,omitempty"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	APIKeyEnv      string `yaml:"api_key_env"`
}

// ChunkingConfig configures how documents are split into chunks.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// IngestionConfig configures the ingestion queue and worker.
type IngestionConfig struct {
	QueueCapacity int    `yaml:"queue_capacity"`
	Concurrency   int    `yaml:"concurrency"`
	MaxFileSize   int64  `yaml:"max_file_size"`
	StagingDir    string `yaml:"staging_dir,omitempty"`
}

// RetrievalConfig configures the answer pipeline.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float32 `yaml:"min_similarity"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	AI        AIConfig        `yaml:"ai"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// APIKey resolves the AI API key from the configured environment variable.
// Falls back to "none", which local OpenAI-compatible services accept.
func (c *AIConfig) APIKey() string {
	if c.APIKeyEnv != "" {
		if key := os.Getenv(c.APIKeyEnv); key != "" {
			return key
		}
	}
	return "none"
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "docqa.db"
	}
	if cfg.AI.Host == "" {
		cfg.AI.Host = "http://localhost:11434"
	}
	if cfg.AI.EmbeddingHost == "" {
		cfg.AI.EmbeddingHost = cfg.AI.Host
	}
	if cfg.AI.ChatHost == "" {
		cfg.AI.ChatHost = cfg.AI.Host
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "embeddinggemma"
	}
	if cfg.AI.ChatModel == "" {
		cfg.AI.ChatModel = "qwen2.5:3b"
	}
	if cfg.AI.APIKeyEnv == "" {
		cfg.AI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 500
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 50
	}
	if cfg.Ingestion.QueueCapacity == 0 {
		cfg.Ingestion.QueueCapacity = 100
	}
	if cfg.Ingestion.Concurrency == 0 {
		cfg.Ingestion.Concurrency = 1
	}
	if cfg.Ingestion.MaxFileSize == 0 {
		cfg.Ingestion.MaxFileSize = 10 << 20
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MinSimilarity == 0 {
		cfg.Retrieval.MinSimilarity = 0.7
	}
}
