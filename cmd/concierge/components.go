package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/embedding"
	"github.com/hyperjump/concierge/internal/enrich"
	"github.com/hyperjump/concierge/internal/generation"
	"github.com/hyperjump/concierge/internal/keyword"
	"github.com/hyperjump/concierge/internal/knowledge"
	"github.com/hyperjump/concierge/internal/pii"
	"github.com/hyperjump/concierge/internal/pipeline"
	"github.com/hyperjump/concierge/internal/places"
	"github.com/hyperjump/concierge/internal/retrieval"
	"github.com/hyperjump/concierge/internal/storage"
	"github.com/hyperjump/concierge/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Storage      *storage.SQLiteStorage
	Embedder     embedding.Embedder
	VectorIndex  *vector.MemoryIndex
	KeywordIndex *keyword.BleveIndex
	Knowledge    *knowledge.Base
	Pipeline     *pipeline.Orchestrator

	vectorIndexPath string
	logger          *zap.Logger
}

// Close persists the vector index and releases every resource.
func (c *Components) Close() {
	if c.VectorIndex != nil && c.vectorIndexPath != "" {
		if err := c.VectorIndex.Save(c.vectorIndexPath); err != nil {
			c.logger.Warn("vector index save failed", zap.String("path", c.vectorIndexPath), zap.Error(err))
		}
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents opens storage and indices, seeds reference data and knowledge,
// and assembles the pipeline. On error everything opened so far is closed.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{vectorIndexPath: cfg.Storage.VectorIndexPath, logger: logger}
	defer func() {
		if err != nil {
			c.vectorIndexPath = ""
			c.Close()
		}
	}()

	if c.Storage, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	fixtures, err := storage.LoadFixtures(cfg.Fixtures.Users, cfg.Fixtures.Stores, cfg.Fixtures.Promotions)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}
	if err = storage.Seed(ctx, c.Storage, fixtures); err != nil {
		return nil, fmt.Errorf("failed to seed fixtures: %w", err)
	}
	logger.Info("fixtures loaded",
		zap.Int("users", len(fixtures.Users)),
		zap.Int("stores", len(fixtures.Stores)),
		zap.Int("promotions", len(fixtures.Promotions)))

	if c.Embedder, err = embedding.New(ctx, cfg.Embedding, cfg.Generation.APIKey); err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if c.VectorIndex, err = vector.NewMemoryIndex(c.Embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if loadErr := c.VectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
		logger.Warn("vector index load skipped (knowledge is re-indexed)", zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
	}
	if c.KeywordIndex, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath); err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	c.Knowledge = knowledge.NewBase(c.Storage, c.Embedder, c.VectorIndex, cfg.Knowledge,
		knowledge.WithLogger(logger),
		knowledge.WithKeywordIndex(c.KeywordIndex))
	if err = c.Knowledge.SeedFixtures(ctx, fixtures.Stores, fixtures.Promotions); err != nil {
		return nil, fmt.Errorf("failed to index fixtures: %w", err)
	}
	if n, idxErr := c.Knowledge.IndexDirectories(ctx, cfg.Knowledge.Directories); idxErr != nil {
		logger.Warn("knowledge directory indexing incomplete", zap.Error(idxErr))
	} else if n > 0 {
		logger.Info("knowledge files indexed", zap.Int("files", n))
	}

	c.Pipeline, err = buildPipeline(ctx, cfg, c, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func buildPipeline(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) (*pipeline.Orchestrator, error) {
	kinds, err := pii.ParseKinds(cfg.Masking.Kinds)
	if err != nil {
		return nil, fmt.Errorf("invalid masking config: %w", err)
	}
	detector, err := pii.NewDetector(kinds...)
	if err != nil {
		return nil, fmt.Errorf("failed to build PII detector: %w", err)
	}
	masker := pii.NewMasker(detector,
		pii.WithMaxInputLength(cfg.Masking.MaxInputLength),
		pii.WithLogger(logger))

	var stores enrich.StoreProvider = c.Storage
	if cfg.Enrichment.LiveStores {
		stores = enrich.FallbackStores{
			Primary:  places.NewOverpassStores(cfg.Enrichment.OverpassURL, cfg.Enrichment.Timeout),
			Fallback: c.Storage,
			Logger:   logger,
		}
	}
	enricher := enrich.NewFromConfig(cfg.Enrichment, c.Storage, stores, c.Storage, logger)
	retriever := retrieval.NewFromConfig(cfg.Retrieval, c.Embedder, c.Knowledge, c.Knowledge, logger)

	generator, err := generation.New(ctx, cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	logger.Info("pipeline ready",
		zap.String("generation_provider", cfg.Generation.Provider),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Bool("hybrid", cfg.Retrieval.Hybrid),
		zap.Bool("live_stores", cfg.Enrichment.LiveStores))

	return pipeline.New(masker, enricher, retriever, generator,
		pipeline.WithLogger(logger),
		pipeline.WithTopK(cfg.Retrieval.TopK),
		pipeline.WithGenerationTimeout(cfg.Generation.Timeout)), nil
}
