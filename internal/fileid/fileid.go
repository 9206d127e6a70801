// Package fileid derives stable knowledge document IDs from their source:
// a watched file path, a store fixture, or a promotion fixture.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Sources reported by Source.
const (
	SourceFile  = "file"
	SourceStore = "store"
	SourcePromo = "promo"
)

const (
	filePrefix  = SourceFile + ":"
	storePrefix = SourceStore + ":"
	promoPrefix = SourcePromo + ":"
)

// FileDocID returns a stable document ID for the given absolute path.
// Same path always yields the same ID, so re-indexing replaces the document.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return filePrefix + hex.EncodeToString(hash[:])
}

// StoreDocID returns the knowledge document ID describing a store fixture.
func StoreDocID(storeID string) string {
	return storePrefix + storeID
}

// PromotionDocID returns the knowledge document ID describing a promotion fixture.
func PromotionDocID(promoID string) string {
	return promoPrefix + promoID
}

// Source reports which kind of source produced id: "file", "store", "promo", or "" if unknown.
func Source(id string) string {
	for _, p := range []string{filePrefix, storePrefix, promoPrefix} {
		if strings.HasPrefix(id, p) {
			return strings.TrimSuffix(p, ":")
		}
	}
	return ""
}
