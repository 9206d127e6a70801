package knowledge

import (
	"context"
	"fmt"

	"github.com/hyperjump/concierge/internal/keyword"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/pii"
)

const titleBoost = 2.0

// Search returns the k chunks nearest to vec, best first. Chunks whose storage row has
// been removed since indexing are skipped.
func (b *Base) Search(ctx context.Context, vec []float32, k int) ([]models.RetrievedChunk, error) {
	hits, err := b.vectors.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	ids := make([]string, len(hits))
	scores := make([]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scores[i] = h.Score
	}
	return b.resolve(ctx, ids, scores)
}

// KeywordSearch returns up to k chunks matching query in the keyword index, best first.
// Vault tokens in query are ignored. It returns nil when no keyword index is configured.
func (b *Base) KeywordSearch(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error) {
	if b.keywords == nil {
		return nil, nil
	}
	query = pii.StripTokens(query)
	if query == "" {
		return nil, nil
	}
	hits, err := b.keywords.Search(ctx, query, k, &keyword.SearchOptions{Fuzziness: 1, TitleBoost: titleBoost})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	ids := make([]string, len(hits))
	scores := make([]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scores[i] = h.Score
	}
	return b.resolve(ctx, ids, scores)
}

func (b *Base) resolve(ctx context.Context, ids []string, scores []float64) ([]models.RetrievedChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	chunks, err := b.store.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	out := make([]models.RetrievedChunk, 0, len(ids))
	for i, id := range ids {
		ch, ok := chunks[id]
		if !ok {
			continue
		}
		out = append(out, models.RetrievedChunk{
			ChunkID:  ch.ID,
			SourceID: ch.DocumentID,
			Text:     ch.Content,
			Score:    scores[i],
		})
	}
	return out, nil
}

// Stats summarizes the knowledge base.
type Stats struct {
	Documents       int64            `json:"documents"`
	BySource        map[string]int64 `json:"by_source"`
	Chunks          int64            `json:"chunks"`
	Vectors         int              `json:"vectors"`
	KeywordEntries  uint64           `json:"keyword_entries"`
	KeywordsEnabled bool             `json:"keywords_enabled"`
}

// Stats returns document, chunk and index counts.
func (b *Base) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Documents, err = b.store.CountDocuments(ctx); err != nil {
		return st, fmt.Errorf("count documents: %w", err)
	}
	if st.BySource, err = b.store.CountDocumentsBySource(ctx); err != nil {
		return st, fmt.Errorf("count documents by source: %w", err)
	}
	if st.Chunks, err = b.store.CountChunks(ctx); err != nil {
		return st, fmt.Errorf("count chunks: %w", err)
	}
	st.Vectors = b.vectors.Size()
	if b.keywords != nil {
		st.KeywordsEnabled = true
		if st.KeywordEntries, err = b.keywords.DocCount(); err != nil {
			return st, fmt.Errorf("count keyword entries: %w", err)
		}
	}
	return st, nil
}
