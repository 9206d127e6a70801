package enrich

import (
	"context"

	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/pkg/utils"
	"go.uber.org/zap"
)

// FallbackStores asks Primary first and falls back to Fallback when Primary fails or
// finds nothing.
type FallbackStores struct {
	Primary  StoreProvider
	Fallback StoreProvider
	Logger   *zap.Logger
}

// NearbyStores implements StoreProvider.
func (f FallbackStores) NearbyStores(ctx context.Context, loc models.Location, radiusM float64) ([]models.Store, error) {
	stores, err := f.Primary.NearbyStores(ctx, loc, radiusM)
	if err == nil && len(stores) > 0 {
		return stores, nil
	}
	if err != nil {
		utils.OrNop(f.Logger).Warn("live store lookup failed, using fixtures", zap.Error(err))
	}
	return f.Fallback.NearbyStores(ctx, loc, radiusM)
}
