package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hyperjump/concierge/internal/models"
)

// Fixtures is the reference data shipped as JSON files.
type Fixtures struct {
	Users      []models.Profile
	Stores     []models.Store
	Promotions []models.Promotion
}

// LoadFixtures reads the three fixture files. An empty path skips that file.
func LoadFixtures(usersPath, storesPath, promotionsPath string) (*Fixtures, error) {
	var f Fixtures
	if err := readJSON(usersPath, &f.Users); err != nil {
		return nil, err
	}
	if err := readJSON(storesPath, &f.Stores); err != nil {
		return nil, err
	}
	if err := readJSON(promotionsPath, &f.Promotions); err != nil {
		return nil, err
	}
	return &f, nil
}

func readJSON(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return nil
}

// Seed writes fixtures into rs, preserving file order.
func Seed(ctx context.Context, rs ReferenceStore, f *Fixtures) error {
	for i := range f.Users {
		if f.Users[i].UserID == "" {
			return fmt.Errorf("user fixture %d has no user_id", i)
		}
		if err := rs.UpsertProfile(ctx, &f.Users[i]); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", f.Users[i].UserID, err)
		}
	}
	for i := range f.Stores {
		if f.Stores[i].StoreID == "" {
			return fmt.Errorf("store fixture %d has no store_id", i)
		}
		if err := rs.UpsertStore(ctx, &f.Stores[i]); err != nil {
			return fmt.Errorf("failed to seed store %s: %w", f.Stores[i].StoreID, err)
		}
	}
	for i := range f.Promotions {
		if f.Promotions[i].PromoID == "" {
			return fmt.Errorf("promotion fixture %d has no promo_id", i)
		}
		if err := rs.UpsertPromotion(ctx, &f.Promotions[i]); err != nil {
			return fmt.Errorf("failed to seed promotion %s: %w", f.Promotions[i].PromoID, err)
		}
	}
	return nil
}
