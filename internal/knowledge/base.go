// Package knowledge maintains the concierge's knowledge base: documents are chunked,
// embedded and indexed into the vector index, chunk storage and (optionally) the
// keyword index, and chunks are searched back out for retrieval.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/embedding"
	"github.com/hyperjump/concierge/internal/extract"
	"github.com/hyperjump/concierge/internal/fileid"
	"github.com/hyperjump/concierge/internal/keyword"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/storage"
	"github.com/hyperjump/concierge/internal/vector"
	"go.uber.org/zap"
)

const (
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
)

// Base indexes and searches knowledge documents.
type Base struct {
	store      storage.KnowledgeStore
	embedder   embedding.Embedder
	vectors    vector.VectorIndex
	keywords   keyword.KeywordIndex
	chunker    *Chunker
	extractor  *extract.Extractor
	extensions []string
	recursive  bool
	logger     *zap.Logger
}

// Option configures a Base.
type Option func(*Base)

// WithLogger sets a logger for indexing events.
func WithLogger(l *zap.Logger) Option {
	return func(b *Base) { b.logger = l }
}

// WithKeywordIndex enables keyword indexing and KeywordSearch.
func WithKeywordIndex(k keyword.KeywordIndex) Option {
	return func(b *Base) { b.keywords = k }
}

// NewBase creates a knowledge base over the given storage, embedder and vector index.
func NewBase(
	store storage.KnowledgeStore,
	embedder embedding.Embedder,
	vectors vector.VectorIndex,
	cfg config.KnowledgeConfig,
	opts ...Option,
) *Base {
	b := &Base{
		store:      store,
		embedder:   embedder,
		vectors:    vectors,
		chunker:    NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		extractor:  extract.NewExtractor(),
		extensions: cfg.Extensions,
		recursive:  cfg.RecursiveOrDefault(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// IndexDocument stores, chunks, embeds and indexes a document. A document with the
// same ID is replaced.
func (b *Base) IndexDocument(ctx context.Context, input *models.DocumentInput) error {
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	if err := b.DeleteDocument(ctx, input.ID); err != nil {
		return err
	}
	doc := &models.Document{
		ID:       input.ID,
		Title:    input.Title,
		Content:  Preprocess(input.Content),
		Metadata: input.Metadata,
	}
	if err := b.store.CreateDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	chunks := b.chunker.Chunk(doc.ID, doc.Content)
	if len(chunks) == 0 {
		b.logger.Debug("knowledge document has no text", zap.String("id", doc.ID))
		return nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}
	if err := b.store.BatchCreateChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	chunkIDs := make([]string, len(chunks))
	for i, ch := range chunks {
		chunkIDs[i] = ch.ID
	}
	if err := b.vectors.Add(ctx, chunkIDs, embeddings); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	if err := b.indexKeywords(ctx, doc.Title, chunks); err != nil {
		return err
	}
	b.logger.Debug("knowledge document indexed", zap.String("id", doc.ID), zap.Int("chunks", len(chunks)))
	return nil
}

// indexKeywords adds chunks to the keyword index. Underscores in the title become
// spaces so file names like "autumn_menu.pdf" match "autumn menu".
func (b *Base) indexKeywords(ctx context.Context, title string, chunks []*models.DocumentChunk) error {
	if b.keywords == nil {
		return nil
	}
	title = strings.ReplaceAll(title, "_", " ")
	for _, ch := range chunks {
		if err := b.keywords.Index(ctx, ch.ID, title, ch.Content); err != nil {
			return fmt.Errorf("failed to index keywords: %w", err)
		}
	}
	return nil
}

// DeleteDocument removes a document and its chunks from every index. Unknown IDs are a no-op.
func (b *Base) DeleteDocument(ctx context.Context, id string) error {
	chunks, err := b.store.GetChunksByDocumentID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}
	if len(chunks) > 0 {
		chunkIDs := make([]string, len(chunks))
		for i, ch := range chunks {
			chunkIDs[i] = ch.ID
		}
		if err := b.vectors.Remove(ctx, chunkIDs); err != nil {
			return fmt.Errorf("failed to delete from vector index: %w", err)
		}
		if b.keywords != nil {
			for _, cid := range chunkIDs {
				if err := b.keywords.Delete(ctx, cid); err != nil {
					return fmt.Errorf("failed to delete from keyword index: %w", err)
				}
			}
		}
	}
	if err := b.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// SeedFixtures indexes one knowledge document per store and per promotion, and removes
// store and promotion documents whose fixture no longer exists.
func (b *Base) SeedFixtures(ctx context.Context, stores []models.Store, promotions []models.Promotion) error {
	keep := make(map[string]bool, len(stores)+len(promotions))
	for _, s := range stores {
		doc := StoreDocument(s)
		if err := b.IndexDocument(ctx, doc); err != nil {
			return fmt.Errorf("index store %s: %w", s.StoreID, err)
		}
		keep[doc.ID] = true
	}
	for _, p := range promotions {
		doc := PromotionDocument(p)
		if err := b.IndexDocument(ctx, doc); err != nil {
			return fmt.Errorf("index promotion %s: %w", p.PromoID, err)
		}
		keep[doc.ID] = true
	}
	pruned, err := b.prune(ctx, keep, fileid.SourceStore, fileid.SourcePromo)
	if err != nil {
		return err
	}
	b.logger.Info("knowledge fixtures indexed",
		zap.Int("stores", len(stores)),
		zap.Int("promotions", len(promotions)),
		zap.Int("pruned", pruned))
	return nil
}

// prune deletes documents from the given sources that are not in keep.
func (b *Base) prune(ctx context.Context, keep map[string]bool, sources ...string) (int, error) {
	n := 0
	for _, src := range sources {
		ids, err := b.store.DocumentIDs(ctx, src)
		if err != nil {
			return n, fmt.Errorf("list %s documents: %w", src, err)
		}
		for _, id := range ids {
			if keep[id] {
				continue
			}
			if err := b.DeleteDocument(ctx, id); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// IndexFile extracts and indexes the file at path. The document ID is derived from the
// absolute path so re-indexing replaces the previous version. Files whose size and
// mtime match the indexed version are skipped.
func (b *Base) IndexFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	if !b.Accepts(absPath) {
		return fmt.Errorf("%w: %s", extract.ErrUnsupported, filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", absPath)
	}
	docID := fileid.FileDocID(absPath)
	if b.unchanged(ctx, absPath, docID, info) {
		b.logger.Debug("knowledge file unchanged", zap.String("path", absPath))
		return b.restoreIndexes(ctx, docID)
	}
	text, err := b.extractor.Extract(absPath)
	if err != nil {
		return fmt.Errorf("extract content: %w", err)
	}
	input := &models.DocumentInput{
		ID:      docID,
		Title:   filepath.Base(absPath),
		Content: text,
		Metadata: map[string]interface{}{
			metaKeySourcePath:  absPath,
			metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
			metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		},
	}
	if err := b.IndexDocument(ctx, input); err != nil {
		return err
	}
	b.logger.Debug("knowledge file indexed", zap.String("path", absPath), zap.String("doc_id", docID))
	return nil
}

// RemoveFile removes the document indexed from path, if any.
func (b *Base) RemoveFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	return b.DeleteDocument(ctx, fileid.FileDocID(absPath))
}

// Accepts reports whether path has an extension the base indexes: one of the configured
// extensions if any are set, otherwise any extension the extractor supports.
func (b *Base) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !b.extractor.Supports(ext) {
		return false
	}
	if len(b.extensions) == 0 {
		return true
	}
	return extensionAllowed(ext, b.extensions)
}

// Recursive reports whether directories are indexed and watched recursively.
func (b *Base) Recursive() bool {
	return b.recursive
}

// unchanged reports whether docID was indexed from absPath with the same mtime and size.
func (b *Base) unchanged(ctx context.Context, absPath, docID string, info os.FileInfo) bool {
	doc, err := b.store.GetDocument(ctx, docID)
	if err != nil || doc.Metadata == nil {
		return false
	}
	if doc.Metadata[metaKeySourcePath] != absPath {
		return false
	}
	// Stored as strings: UnixNano exceeds float64 precision after a JSON round trip.
	return metadataInt64(doc.Metadata, metaKeySourceMtime) == info.ModTime().UnixNano() &&
		metadataInt64(doc.Metadata, metaKeySourceSize) == info.Size()
}

// restoreIndexes refills the in-memory indexes for a stored document: chunks missing
// from the vector index are re-embedded, and the keyword index is repopulated.
func (b *Base) restoreIndexes(ctx context.Context, docID string) error {
	chunks, err := b.store.GetChunksByDocumentID(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}
	var (
		ids   []string
		texts []string
	)
	for _, ch := range chunks {
		if !b.vectors.Contains(ch.ID) {
			ids = append(ids, ch.ID)
			texts = append(texts, ch.Content)
		}
	}
	if len(ids) > 0 {
		vecs, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if err := b.vectors.Add(ctx, ids, vecs); err != nil {
			return fmt.Errorf("failed to index vectors: %w", err)
		}
		b.logger.Debug("knowledge vectors restored", zap.String("doc_id", docID), zap.Int("chunks", len(ids)))
	}
	if b.keywords == nil {
		return nil
	}
	doc, err := b.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	return b.indexKeywords(ctx, doc.Title, chunks)
}

func metadataInt64(m map[string]interface{}, key string) int64 {
	switch n := m[key].(type) {
	case string:
		x, _ := strconv.ParseInt(n, 10, 64)
		return x
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// IndexDirectory walks dir and indexes every accepted regular file. Subdirectories are
// visited only when the base is recursive. Files that fail to index are logged and
// skipped; the count of indexed files is returned.
func (b *Base) IndexDirectory(ctx context.Context, dir string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	n := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !b.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !b.Accepts(path) {
			return nil
		}
		if err := b.IndexFile(ctx, path); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			b.logger.Warn("knowledge file skipped", zap.String("path", path), zap.Error(err))
			return nil
		}
		n++
		return nil
	})
	return n, err
}

// IndexDirectories indexes every directory in dirs and returns the total file count.
func (b *Base) IndexDirectories(ctx context.Context, dirs []string) (int, error) {
	total := 0
	for _, dir := range dirs {
		n, err := b.IndexDirectory(ctx, dir)
		total += n
		if err != nil {
			return total, fmt.Errorf("index %s: %w", dir, err)
		}
		b.logger.Info("knowledge directory indexed", zap.String("dir", dir), zap.Int("files", n))
	}
	return total, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}
