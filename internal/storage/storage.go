// Package storage persists knowledge documents and the reference data (profiles,
// stores, promotions) the concierge reads while handling requests.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/concierge/internal/models"
)

// KnowledgeStore defines knowledge document and chunk persistence.
type KnowledgeStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	DocumentIDs(ctx context.Context, source string) ([]string, error)

	BatchCreateChunks(ctx context.Context, chunks []*models.DocumentChunk) error
	GetChunksByIDs(ctx context.Context, ids []string) (map[string]*models.DocumentChunk, error)
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.DocumentChunk, error)

	CountDocuments(ctx context.Context) (int64, error)
	CountDocumentsBySource(ctx context.Context) (map[string]int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}

// ReferenceStore defines read and seed operations for request-time reference data.
type ReferenceStore interface {
	UpsertProfile(ctx context.Context, p *models.Profile) error
	Profile(ctx context.Context, userID string) (*models.Profile, error)

	UpsertStore(ctx context.Context, s *models.Store) error
	Stores(ctx context.Context) ([]models.Store, error)
	NearbyStores(ctx context.Context, loc models.Location, radiusM float64) ([]models.Store, error)

	UpsertPromotion(ctx context.Context, p *models.Promotion) error
	Promotions(ctx context.Context) ([]models.Promotion, error)
	ActivePromotions(ctx context.Context, now time.Time) ([]models.Promotion, error)
}
