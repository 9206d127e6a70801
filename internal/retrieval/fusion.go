package retrieval

import (
	"sort"

	"github.com/hyperjump/concierge/internal/models"
)

// NormalizeKeywordScores scales keyword scores to [0,1] by the maximum score.
// Keys are chunk keys as returned by chunkKey.
func NormalizeKeywordScores(chunks []models.RetrievedChunk) map[string]float64 {
	normalized := make(map[string]float64, len(chunks))
	maxScore := 0.0
	for _, c := range chunks {
		maxScore = max(maxScore, c.Score)
	}
	for _, c := range chunks {
		if maxScore > 0 {
			normalized[chunkKey(c)] = c.Score / maxScore
		} else {
			normalized[chunkKey(c)] = 0
		}
	}
	return normalized
}

// Fuse merges semantic and keyword hits into one list scored as
// semanticWeight*semantic + keywordWeight*normalized keyword. Semantic hits come first
// in their original order, keyword-only hits follow, and the result is stably sorted
// by fused score so equal scores keep that order.
func Fuse(semantic, keywordHits []models.RetrievedChunk, semanticWeight, keywordWeight float64) []models.RetrievedChunk {
	kwScores := NormalizeKeywordScores(keywordHits)
	seen := make(map[string]bool, len(semantic)+len(keywordHits))
	fused := make([]models.RetrievedChunk, 0, len(semantic)+len(keywordHits))
	for _, c := range semantic {
		key := chunkKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		c.Score = semanticWeight*c.Score + keywordWeight*kwScores[key]
		fused = append(fused, c)
	}
	for _, c := range keywordHits {
		key := chunkKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		c.Score = keywordWeight * kwScores[key]
		fused = append(fused, c)
	}
	SortByScore(fused)
	return fused
}

// SortByScore sorts chunks by descending score. Equal scores keep their relative order.
func SortByScore(chunks []models.RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
}

func chunkKey(c models.RetrievedChunk) string {
	if c.ChunkID != "" {
		return c.ChunkID
	}
	return c.SourceID + "\x00" + c.Text
}
