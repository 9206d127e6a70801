package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/concierge/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFixturesAndSeed(t *testing.T) {
	dir := t.TempDir()
	users := writeFile(t, dir, "users.json", `[
		{"user_id": "u1", "name": "Ava", "email": "ava@example.com",
		 "preferences": {"favorite_drinks": ["flat white"], "preferred_temperature": "hot"},
		 "loyalty_points": 40}
	]`)
	stores := writeFile(t, dir, "stores.json", `[
		{"store_id": "s1", "name": "Bean There", "type": "cafe",
		 "location": {"lat": 40.758, "lng": -73.9855}, "hours": {"open": "07:00", "close": "19:00"},
		 "popular_items": ["flat white", "croissant"]}
	]`)
	promos := writeFile(t, dir, "promotions.json", `[
		{"promo_id": "p1", "store_id": "s1", "title": "Free pastry", "active": true,
		 "ends_at": "2099-01-01T00:00:00Z"}
	]`)

	f, err := LoadFixtures(users, stores, promos)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Users) != 1 || len(f.Stores) != 1 || len(f.Promotions) != 1 {
		t.Fatalf("unexpected fixture sizes: %+v", f)
	}
	if f.Stores[0].Hours.Open != "07:00" || f.Promotions[0].EndsAt == nil {
		t.Errorf("fields not decoded: %+v %+v", f.Stores[0], f.Promotions[0])
	}

	store := newTestStorage(t)
	ctx := context.Background()
	if err := Seed(ctx, store, f); err != nil {
		t.Fatal(err)
	}
	p, err := store.Profile(ctx, "u1")
	if err != nil || p == nil || p.Preferences.PreferredTemperature != "hot" {
		t.Errorf("profile not seeded: %+v, %v", p, err)
	}
	all, _ := store.Stores(ctx)
	if len(all) != 1 || all[0].PopularItems[1] != "croissant" {
		t.Errorf("stores not seeded: %+v", all)
	}

	// Seeding twice is an upsert.
	if err := Seed(ctx, store, f); err != nil {
		t.Fatal(err)
	}
	all, _ = store.Stores(ctx)
	if len(all) != 1 {
		t.Errorf("expected 1 store after reseed, got %d", len(all))
	}
}

func TestLoadFixtures_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFixtures(filepath.Join(dir, "missing.json"), "", ""); err == nil {
		t.Error("expected error for missing file")
	}
	bad := writeFile(t, dir, "bad.json", `{not json`)
	if _, err := LoadFixtures("", bad, ""); err == nil {
		t.Error("expected error for invalid JSON")
	}
	f, err := LoadFixtures("", "", "")
	if err != nil || len(f.Users) != 0 {
		t.Errorf("empty paths should load nothing: %+v, %v", f, err)
	}
}

func TestSeed_RequiresIDs(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := Seed(ctx, store, &Fixtures{}); err != nil {
		t.Fatalf("empty fixtures should seed: %v", err)
	}
	bad := &Fixtures{Users: []models.Profile{{Name: "No ID"}}}
	if err := Seed(ctx, store, bad); err == nil {
		t.Error("expected error for user without user_id")
	}
}
