package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int               `json:"port"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	Database      DatabaseConfig    `json:"database"`
	FileStore     FileStoreConfig   `json:"file_store"`
	VectorStore   VectorStoreConfig `json:"vector_store"`
	AI            AIConfig          `json:"ai"`
	RAG           RAGConfig         `json:"rag"`
	Upload        UploadConfig      `json:"upload"`
	Jobs          JobsConfig        `json:"jobs"`
	AIRateLimitMS int64             `json:"ai_rate_limit_ms"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type VectorStoreConfig struct {
	Type string `json:"type"`
	Dir  string `json:"dir"`
}

type AIConfig struct {
	ChatProvider  string      `json:"chat_provider"`
	EmbedProvider string      `json:"embed_provider"`
	Data          interface{} `json:"data"`
	ChatModel     string      `json:"chat_model"`
	EmbedModel    string      `json:"embed_model"`
	Dimension     int         `json:"dimension"`
	BatchSize     int         `json:"batch_size"`
	MaxInputChars int         `json:"max_input_chars"`
	MaxTokens     int         `json:"max_tokens"`
	Temperature   float64     `json:"temperature"`
	TimeoutSecs   int         `json:"timeout_secs"`
	CacheSize     int         `json:"cache_size"`
	CacheTTLHours int         `json:"cache_ttl_hours"`
}

type RAGConfig struct {
	ChunkSize           int     `json:"chunk_size"`
	ChunkOverlap        int     `json:"chunk_overlap"`
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxContextLength    int     `json:"max_context_length"`
	HistoryTurns        int     `json:"history_turns"`
}

type UploadConfig struct {
	MaxSizeBytes int64 `json:"max_size_bytes"`
}

type JobsConfig struct {
	CacheCleanupSpec  string `json:"cache_cleanup_spec"`
	CacheMaxAgeDays   int    `json:"cache_max_age_days"`
	IndexBacklogSpec  string `json:"index_backlog_spec"`
	IndexBacklogBatch int    `json:"index_backlog_batch"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "flat"
	}
	if cfg.VectorStore.Type == "flat" && cfg.VectorStore.Dir == "" {
		return nil, fmt.Errorf("vector_store.dir is required for flat store")
	}
	applyAIDefaults(&cfg.AI)
	applyRAGDefaults(&cfg.RAG)
	if cfg.Upload.MaxSizeBytes <= 0 {
		cfg.Upload.MaxSizeBytes = 100 << 20
	}
	if cfg.Jobs.CacheMaxAgeDays <= 0 {
		cfg.Jobs.CacheMaxAgeDays = 30
	}
	if cfg.Jobs.IndexBacklogBatch <= 0 {
		cfg.Jobs.IndexBacklogBatch = 5
	}
	// 0 picks the default; a negative value turns the limiter off.
	if cfg.AIRateLimitMS == 0 {
		cfg.AIRateLimitMS = 1000
	}
	if cfg.AIRateLimitMS < 0 {
		cfg.AIRateLimitMS = 0
	}
	return &cfg, nil
}

func applyAIDefaults(cfg *AIConfig) {
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-ada-002"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 32000
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 60
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	if cfg.CacheTTLHours <= 0 {
		cfg.CacheTTLHours = 2
	}
}

func applyRAGDefaults(cfg *RAGConfig) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.3
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = 4000
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 20
	}
}
