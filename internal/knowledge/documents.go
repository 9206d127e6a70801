package knowledge

import (
	"fmt"
	"strings"

	"github.com/hyperjump/concierge/internal/fileid"
	"github.com/hyperjump/concierge/internal/models"
)

// StoreDocument renders a store fixture as a knowledge document.
func StoreDocument(s models.Store) *models.DocumentInput {
	var b strings.Builder
	fmt.Fprintf(&b, "Store: %s. Type: %s. ", s.Name, s.Type)
	if s.Hours.Open != "" || s.Hours.Close != "" {
		fmt.Fprintf(&b, "Hours: %s to %s. ", s.Hours.Open, s.Hours.Close)
	}
	if len(s.PopularItems) > 0 {
		fmt.Fprintf(&b, "Popular items: %s.", strings.Join(s.PopularItems, ", "))
	}
	return &models.DocumentInput{
		ID:      fileid.StoreDocID(s.StoreID),
		Title:   s.Name,
		Content: strings.TrimSpace(b.String()),
		Metadata: map[string]interface{}{
			"type":     "store",
			"store_id": s.StoreID,
		},
	}
}

// PromotionDocument renders a promotion fixture as a knowledge document.
func PromotionDocument(p models.Promotion) *models.DocumentInput {
	var b strings.Builder
	fmt.Fprintf(&b, "Promotion: %s. %s. ", p.Title, strings.TrimSuffix(p.Description, "."))
	if len(p.ApplicableItems) > 0 {
		fmt.Fprintf(&b, "Applies to: %s.", strings.Join(p.ApplicableItems, ", "))
	}
	return &models.DocumentInput{
		ID:      fileid.PromotionDocID(p.PromoID),
		Title:   p.Title,
		Content: strings.TrimSpace(b.String()),
		Metadata: map[string]interface{}{
			"type":     "promotion",
			"store_id": p.StoreID,
			"promo_id": p.PromoID,
		},
	}
}
