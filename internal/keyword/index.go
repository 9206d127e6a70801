// Package keyword provides full-text search over knowledge chunks.
package keyword

import "context"

// SearchOptions are optional parameters for keyword search. Nil means exact term matching.
type SearchOptions struct {
	// Fuzziness is the maximum edit distance per term (0 disables, max 2).
	Fuzziness int
	// TitleBoost multiplies title matches. Values <= 1 search title and content as one.
	TitleBoost float64
}

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	Index(ctx context.Context, id, title, content string) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    string
	Score float64
}
