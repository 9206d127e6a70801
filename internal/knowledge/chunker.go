package knowledge

import (
	"fmt"
	"strings"

	"github.com/hyperjump/concierge/internal/models"
)

// Chunker splits text into overlapping word windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap, both in words.
// A non-positive size falls back to 256 words.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 256
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into chunks of docID. Chunk IDs are "<docID>#<index>", so
// re-chunking the same document yields the same IDs.
func (c *Chunker) Chunk(docID, text string) []*models.DocumentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var chunks []*models.DocumentChunk
	for start := 0; start < len(words); start += step {
		end := min(start+c.chunkSize, len(words))
		chunks = append(chunks, &models.DocumentChunk{
			ID:         chunkID(docID, len(chunks)),
			DocumentID: docID,
			Content:    strings.Join(words[start:end], " "),
			ChunkIndex: len(chunks),
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

func chunkID(docID string, index int) string {
	return fmt.Sprintf("%s#%d", docID, index)
}

// Preprocess trims text and collapses every whitespace run to a single space.
func Preprocess(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
