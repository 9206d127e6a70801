// Package retrieval finds knowledge chunks relevant to a (masked) query: the query is
// embedded, the vector index is searched, and keyword hits are optionally fused in.
// Retrieval never fails a request; problems degrade to an empty result.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/embedding"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/pkg/utils"
	"go.uber.org/zap"
)

// ErrUnavailable marks a retrieval that degraded to no chunks.
var ErrUnavailable = errors.New("retrieval unavailable")

// Searcher finds the chunks nearest to a query vector, best first.
type Searcher interface {
	Search(ctx context.Context, vec []float32, k int) ([]models.RetrievedChunk, error)
}

// KeywordSearcher finds chunks matching a text query, best first.
type KeywordSearcher interface {
	KeywordSearch(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error)
}

// Result is the outcome of one retrieval. Degraded is non-nil, and wraps
// ErrUnavailable, when semantic search could not run.
type Result struct {
	Chunks   []models.RetrievedChunk
	Degraded error
}

// Retriever runs the retrieval stage.
type Retriever struct {
	embedder       embedding.Embedder
	searcher       Searcher
	keywords       KeywordSearcher
	timeout        time.Duration
	minScore       float64
	semanticWeight float64
	keywordWeight  float64
	logger         *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for degradations.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithTimeout bounds the whole retrieval. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Retriever) { r.timeout = d }
}

// WithMinScore drops chunks scoring below score.
func WithMinScore(score float64) Option {
	return func(r *Retriever) { r.minScore = score }
}

// WithKeywordSearcher enables hybrid retrieval with the given fusion weights.
func WithKeywordSearcher(ks KeywordSearcher, semanticWeight, keywordWeight float64) Option {
	return func(r *Retriever) {
		r.keywords = ks
		r.semanticWeight = semanticWeight
		r.keywordWeight = keywordWeight
	}
}

// New creates a Retriever that embeds with embedder and searches with searcher.
func New(embedder embedding.Embedder, searcher Searcher, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		searcher: searcher,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromConfig creates a Retriever from retrieval settings. keywords is only used when
// cfg.Hybrid is set.
func NewFromConfig(cfg config.RetrievalConfig, embedder embedding.Embedder, searcher Searcher, keywords KeywordSearcher, logger *zap.Logger) *Retriever {
	opts := []Option{WithTimeout(cfg.Timeout), WithMinScore(cfg.MinScore), WithLogger(utils.OrNop(logger))}
	if cfg.Hybrid && keywords != nil {
		opts = append(opts, WithKeywordSearcher(keywords, cfg.SemanticWeight, cfg.KeywordWeight))
	}
	return New(embedder, searcher, opts...)
}

type searchOutcome struct {
	semantic []models.RetrievedChunk
	keyword  []models.RetrievedChunk
	err      error
}

// Retrieve returns up to k chunks for query, best first with ties in index order.
// It never returns an error: failures and timeouts yield no chunks and set Degraded.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) Result {
	if k <= 0 {
		return Result{}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan searchOutcome, 1)
	go func() { done <- r.search(ctx, query, k) }()

	var out searchOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = fmt.Errorf("search: %w", ctx.Err())
	}
	if out.err != nil {
		degraded := fmt.Errorf("%w: %v", ErrUnavailable, out.err)
		r.logger.Warn("retrieval degraded", zap.Error(degraded))
		return Result{Chunks: []models.RetrievedChunk{}, Degraded: degraded}
	}

	chunks := append([]models.RetrievedChunk(nil), out.semantic...)
	if r.keywords != nil {
		chunks = Fuse(out.semantic, out.keyword, r.semanticWeight, r.keywordWeight)
	} else {
		SortByScore(chunks)
	}
	chunks = r.filter(chunks)
	if len(chunks) > k {
		chunks = chunks[:k]
	}
	r.logger.Debug("retrieval finished", zap.Int("chunks", len(chunks)))
	return Result{Chunks: chunks}
}

// search embeds then searches, and runs the keyword search alongside when enabled.
// A keyword failure only drops keyword hits.
func (r *Retriever) search(ctx context.Context, query string, k int) searchOutcome {
	var (
		out searchOutcome
		wg  sync.WaitGroup
	)
	if r.keywords != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := r.keywords.KeywordSearch(ctx, query, k)
			if err != nil {
				r.logger.Warn("keyword search failed", zap.Error(err))
				return
			}
			out.keyword = hits
		}()
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		wg.Wait()
		return searchOutcome{err: fmt.Errorf("embed query: %w", err)}
	}
	semantic, err := r.searcher.Search(ctx, vec, k)
	wg.Wait()
	if err != nil {
		return searchOutcome{err: fmt.Errorf("vector search: %w", err)}
	}
	out.semantic = semantic
	return out
}

func (r *Retriever) filter(chunks []models.RetrievedChunk) []models.RetrievedChunk {
	if r.minScore <= 0 {
		return chunks
	}
	kept := chunks[:0]
	for _, c := range chunks {
		if c.Score >= r.minScore {
			kept = append(kept, c)
		}
	}
	return kept
}
