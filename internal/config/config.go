// Package config provides configuration loading and structs for the concierge server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MemoryDatabase is the SQLite path for a throwaway in-memory database.
const MemoryDatabase = ":memory:"

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Fixtures   FixturesConfig   `yaml:"fixtures"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Generation GenerationConfig `yaml:"generation"`
	Masking    MaskingConfig    `yaml:"masking"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the database and indices. An empty VectorIndexPath
// or BleveIndexPath keeps that index in memory only.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// FixturesConfig points at the JSON reference data seeded into storage at start-up.
type FixturesConfig struct {
	Users      string `yaml:"users"`
	Stores     string `yaml:"stores"`
	Promotions string `yaml:"promotions"`
}

// KnowledgeConfig holds knowledge-base ingestion settings.
type KnowledgeConfig struct {
	Directories  []string `yaml:"directories"`
	Extensions   []string `yaml:"extensions"`
	Recursive    *bool    `yaml:"recursive"`
	Watch        bool     `yaml:"watch"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
}

// RecursiveOrDefault returns whether to scan directories recursively; defaults to true when unset.
func (k *KnowledgeConfig) RecursiveOrDefault() bool {
	if k.Recursive != nil {
		return *k.Recursive
	}
	return true
}

// EmbeddingConfig selects and tunes the embedding backend.
// Provider is one of "hash", "genai" or "onnx".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds retrieval stage settings.
type RetrievalConfig struct {
	TopK           int           `yaml:"top_k"`
	Timeout        time.Duration `yaml:"timeout"`
	MinScore       float64       `yaml:"min_score"`
	Hybrid         bool          `yaml:"hybrid"`
	SemanticWeight float64       `yaml:"semantic_weight"`
	KeywordWeight  float64       `yaml:"keyword_weight"`
}

// EnrichmentConfig holds context enrichment settings.
type EnrichmentConfig struct {
	StoreRadiusM float64       `yaml:"store_radius_m"`
	MaxStores    int           `yaml:"max_stores"`
	LiveStores   bool          `yaml:"live_stores"`
	OverpassURL  string        `yaml:"overpass_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// GenerationConfig selects the generation backend. Provider is "gemini" or "echo".
type GenerationConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
}

// MaskingConfig restricts detection to a subset of PII kinds and bounds input size.
type MaskingConfig struct {
	Kinds          []string `yaml:"kinds"`
	MaxInputLength int      `yaml:"max_input_length"`
}

// Load reads and parses the config file at path, applies environment overrides and
// defaults, and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if cfg.Storage.DatabasePath != MemoryDatabase {
		cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	}
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Fixtures.Users = expandPath(cfg.Fixtures.Users, configDir)
	cfg.Fixtures.Stores = expandPath(cfg.Fixtures.Stores, configDir)
	cfg.Fixtures.Promotions = expandPath(cfg.Fixtures.Promotions, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Knowledge.Directories {
		cfg.Knowledge.Directories[i] = expandPath(cfg.Knowledge.Directories[i], configDir)
	}

	return &cfg, nil
}

// ApplyEnv overrides cfg with values from the environment. GOOGLE_API_KEY only
// fills the generation key when the file leaves it empty.
func ApplyEnv(cfg *Config) error {
	if cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if v := os.Getenv("CONCIERGE_GENERATION_PROVIDER"); v != "" {
		cfg.Generation.Provider = v
	}
	if v := os.Getenv("CONCIERGE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CONCIERGE_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CONCIERGE_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CONCIERGE_DEBUG %q: %w", v, err)
		}
		cfg.Debug = debug
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
