package storage

import (
	"context"
	"testing"
	"time"

	"github.com/hyperjump/concierge/internal/models"
)

func TestSQLiteStorage_Profile(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	p := &models.Profile{
		UserID:        "u1",
		Name:          "Ava",
		Phone:         "555-123-4567",
		Preferences:   models.Preferences{FavoriteDrinks: []string{"chai latte"}},
		LoyaltyPoints: 120,
	}
	if err := store.UpsertProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := store.Profile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Name != "Ava" || got.LoyaltyPoints != 120 || got.Preferences.FavoriteDrinks[0] != "chai latte" {
		t.Errorf("got %+v", got)
	}

	p.LoyaltyPoints = 150
	if err := store.UpsertProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Profile(ctx, "u1")
	if got.LoyaltyPoints != 150 {
		t.Errorf("upsert did not update: %d", got.LoyaltyPoints)
	}

	missing, err := store.Profile(ctx, "nobody")
	if err != nil {
		t.Fatalf("unknown user should not error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil profile, got %+v", missing)
	}
}

func TestSQLiteStorage_NearbyStores(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, s := range []models.Store{
		{StoreID: "far", Name: "Far", Location: models.Location{Lat: 40.7700, Lng: -73.9855}},
		{StoreID: "b", Name: "B", Location: models.Location{Lat: 40.7600, Lng: -73.9855}},
		{StoreID: "a", Name: "A", Location: models.Location{Lat: 40.7600, Lng: -73.9855}},
		{StoreID: "near", Name: "Near", Location: models.Location{Lat: 40.7585, Lng: -73.9855}},
	} {
		s := s
		if err := store.UpsertStore(ctx, &s); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.NearbyStores(ctx, models.Location{Lat: 40.7580, Lng: -73.9855}, 500)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"near", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %d stores, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].StoreID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].StoreID, id)
		}
		if got[i].Source != "fixture" {
			t.Errorf("source = %q, want fixture", got[i].Source)
		}
	}

	all, err := store.Stores(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].StoreID != "far" {
		t.Errorf("Stores should keep insertion order, got %+v", all)
	}
}

func TestSQLiteStorage_ActivePromotions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	for _, p := range []models.Promotion{
		{PromoID: "p1", StoreID: "s1", Title: "BOGO latte", Active: true},
		{PromoID: "p2", StoreID: "s2", Title: "Expired", Active: true, EndsAt: &past},
		{PromoID: "p3", Title: "Site wide", Active: true, StartsAt: &past, EndsAt: &future},
		{PromoID: "p4", StoreID: "s1", Title: "Disabled", Active: false},
		{PromoID: "p5", StoreID: "s1", Title: "Upcoming", Active: true, StartsAt: &future},
	} {
		p := p
		if err := store.UpsertPromotion(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ActivePromotions(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].PromoID != "p1" || got[1].PromoID != "p3" {
		t.Errorf("ActivePromotions = %+v", got)
	}
	if got[1].EndsAt == nil || !got[1].EndsAt.Equal(future) {
		t.Errorf("EndsAt not round-tripped: %v", got[1].EndsAt)
	}

	all, err := store.Promotions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 promotions, got %d", len(all))
	}
}
