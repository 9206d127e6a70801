package retrieval

import (
	"testing"

	"github.com/hyperjump/concierge/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeKeywordScores(t *testing.T) {
	m := NormalizeKeywordScores([]models.RetrievedChunk{chunk("a", 2), chunk("b", 4), chunk("c", 1)})
	assert.Equal(t, map[string]float64{"a": 0.5, "b": 1, "c": 0.25}, m)

	zero := NormalizeKeywordScores([]models.RetrievedChunk{chunk("a", 0)})
	assert.Equal(t, 0.0, zero["a"])
}

func TestFuse_TiesKeepSemanticOrderFirst(t *testing.T) {
	semantic := []models.RetrievedChunk{chunk("a", 0.5), chunk("b", 0.5)}
	keyword := []models.RetrievedChunk{chunk("c", 1)}

	got := Fuse(semantic, keyword, 1, 0.5)

	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestFuse_KeyWithoutChunkID(t *testing.T) {
	s := models.RetrievedChunk{SourceID: "doc", Text: "same", Score: 0.4}
	k := models.RetrievedChunk{SourceID: "doc", Text: "same", Score: 3}

	got := Fuse([]models.RetrievedChunk{s}, []models.RetrievedChunk{k}, 0.5, 0.5)

	assert.Len(t, got, 1)
	assert.InDelta(t, 0.7, got[0].Score, 1e-9)
}

func TestSortByScore_Stable(t *testing.T) {
	chunks := []models.RetrievedChunk{chunk("x", 0.1), chunk("y", 0.3), chunk("z", 0.1), chunk("w", 0.3)}
	SortByScore(chunks)
	assert.Equal(t, []string{"y", "w", "x", "z"}, ids(chunks))
}
