package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = MemoryDatabase
	}
	if cfg.Fixtures.Users == "" {
		cfg.Fixtures.Users = "./data/users.json"
	}
	if cfg.Fixtures.Stores == "" {
		cfg.Fixtures.Stores = "./data/stores.json"
	}
	if cfg.Fixtures.Promotions == "" {
		cfg.Fixtures.Promotions = "./data/promotions.json"
	}
	if cfg.Knowledge.Extensions == nil {
		cfg.Knowledge.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx"}
	}
	if len(cfg.Knowledge.Directories) > 0 && cfg.Knowledge.Recursive == nil {
		t := true
		cfg.Knowledge.Recursive = &t
	}
	if cfg.Knowledge.ChunkSize == 0 {
		cfg.Knowledge.ChunkSize = 256
	}
	if cfg.Knowledge.ChunkOverlap == 0 {
		cfg.Knowledge.ChunkOverlap = 32
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-004"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = 5 * time.Second
	}
	if cfg.Retrieval.SemanticWeight == 0 && cfg.Retrieval.KeywordWeight == 0 {
		cfg.Retrieval.SemanticWeight = 0.7
		cfg.Retrieval.KeywordWeight = 0.3
	}
	if cfg.Enrichment.StoreRadiusM == 0 {
		cfg.Enrichment.StoreRadiusM = 500
	}
	if cfg.Enrichment.MaxStores == 0 {
		cfg.Enrichment.MaxStores = 10
	}
	if cfg.Enrichment.OverpassURL == "" {
		cfg.Enrichment.OverpassURL = "https://overpass-api.de/api/interpreter"
	}
	if cfg.Enrichment.Timeout == 0 {
		cfg.Enrichment.Timeout = 5 * time.Second
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "gemini"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-2.0-flash"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 30 * time.Second
	}
	if cfg.Masking.MaxInputLength == 0 {
		cfg.Masking.MaxInputLength = 4096
	}
}
