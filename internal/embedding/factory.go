package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/concierge/internal/config"
)

// Provider names accepted in embedding.provider.
const (
	ProviderHash  = "hash"
	ProviderGenAI = "genai"
	ProviderONNX  = "onnx"
)

// New builds the configured embedder wrapped in an LRU cache.
func New(ctx context.Context, cfg config.EmbeddingConfig, apiKey string) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case ProviderHash, "":
		inner = NewHashEmbedder(cfg.Dimensions)
	case ProviderGenAI:
		e, err := NewGenAIEmbedder(ctx, apiKey, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		inner = e
	case ProviderONNX:
		e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hash, genai, onnx)", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}
