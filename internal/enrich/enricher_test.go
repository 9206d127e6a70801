package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

// barrier blocks each caller until n callers have arrived, or fails after a second.
type barrier struct {
	wg sync.WaitGroup
}

func newBarrier(n int) *barrier {
	b := &barrier{}
	b.wg.Add(n)
	return b
}

func (b *barrier) await() error {
	b.wg.Done()
	done := make(chan struct{})
	go func() { b.wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-time.After(time.Second):
		return errors.New("lookups did not run concurrently")
	}
}

type fakeProfiles struct {
	profile *models.Profile
	err     error
	b       *barrier
}

func (f fakeProfiles) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	if f.b != nil {
		if err := f.b.await(); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.profile == nil || f.profile.UserID != userID {
		return nil, nil
	}
	return f.profile, nil
}

type fakeStores struct {
	stores    []models.Store
	err       error
	b         *barrier
	gotRadius float64
	mu        sync.Mutex
	calls     int
}

func (f *fakeStores) NearbyStores(ctx context.Context, loc models.Location, radiusM float64) ([]models.Store, error) {
	f.mu.Lock()
	f.calls++
	f.gotRadius = radiusM
	f.mu.Unlock()
	if f.b != nil {
		if err := f.b.await(); err != nil {
			return nil, err
		}
	}
	return f.stores, f.err
}

type fakePromotions struct {
	promos []models.Promotion
	err    error
	b      *barrier
	gotNow time.Time
}

func (f *fakePromotions) ActivePromotions(ctx context.Context, now time.Time) ([]models.Promotion, error) {
	f.gotNow = now
	if f.b != nil {
		if err := f.b.await(); err != nil {
			return nil, err
		}
	}
	return f.promos, f.err
}

func fixtures() (*models.Profile, []models.Store, []models.Promotion) {
	profile := &models.Profile{UserID: "u1", Name: "Ada", LoyaltyPoints: 10}
	stores := []models.Store{
		{StoreID: "s1", Name: "Bean There", DistanceM: 40},
		{StoreID: "s2", Name: "Tea Time", DistanceM: 120},
	}
	promos := []models.Promotion{
		{PromoID: "p1", StoreID: "s1", Title: "Cocoa Hour", Active: true},
		{PromoID: "p2", StoreID: "s9", Title: "Far Away Deal", Active: true},
		{PromoID: "p3", Title: "App Week", Active: true},
	}
	return profile, stores, promos
}

func TestEnrich_FullBundle(t *testing.T) {
	profile, stores, promos := fixtures()
	b := newBarrier(3)
	sp := &fakeStores{stores: stores, b: b}
	pp := &fakePromotions{promos: promos, b: b}
	e := New(fakeProfiles{profile: profile, b: b}, sp, pp,
		WithClock(func() time.Time { return testNow }), WithRadius(500))

	res := e.Enrich(context.Background(), "u1", &models.Location{Lat: 1, Lng: 2})

	want := models.ContextBundle{
		Profile:          profile,
		NearbyStores:     stores,
		ActivePromotions: []models.Promotion{promos[0], promos[2]},
	}
	if diff := cmp.Diff(want, res.Bundle); diff != "" {
		t.Errorf("bundle mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, res.Degraded)
	assert.Equal(t, 500.0, sp.gotRadius)
	assert.Equal(t, testNow, pp.gotNow)
}

func TestEnrich_NoLocation(t *testing.T) {
	profile, stores, promos := fixtures()
	sp := &fakeStores{stores: stores}
	e := New(fakeProfiles{profile: profile}, sp, &fakePromotions{promos: promos})

	res := e.Enrich(context.Background(), "u1", nil)

	assert.Equal(t, 0, sp.calls)
	assert.NotNil(t, res.Bundle.NearbyStores)
	assert.Empty(t, res.Bundle.NearbyStores)
	// Only the promotion without a store survives.
	require.Len(t, res.Bundle.ActivePromotions, 1)
	assert.Equal(t, "p3", res.Bundle.ActivePromotions[0].PromoID)
	assert.Empty(t, res.Degraded)
}

func TestEnrich_UnknownUser(t *testing.T) {
	profile, _, _ := fixtures()
	res := New(fakeProfiles{profile: profile}, nil, nil).Enrich(context.Background(), "nobody", nil)
	assert.Nil(t, res.Bundle.Profile)
	assert.Empty(t, res.Degraded)
}

func TestEnrich_Degrades(t *testing.T) {
	profile, stores, promos := fixtures()
	boom := errors.New("fixture store offline")
	loc := &models.Location{}

	tests := []struct {
		name         string
		profiles     fakeProfiles
		stores       *fakeStores
		promotions   *fakePromotions
		wantDegraded []string
		check        func(t *testing.T, b models.ContextBundle)
	}{
		{
			name:         "profile fails",
			profiles:     fakeProfiles{err: boom},
			stores:       &fakeStores{stores: stores},
			promotions:   &fakePromotions{promos: promos},
			wantDegraded: []string{FieldProfile},
			check: func(t *testing.T, b models.ContextBundle) {
				assert.Nil(t, b.Profile)
				assert.Len(t, b.NearbyStores, 2)
				assert.Len(t, b.ActivePromotions, 2)
			},
		},
		{
			name:         "stores fail drops store promotions",
			profiles:     fakeProfiles{profile: profile},
			stores:       &fakeStores{stores: stores, err: boom},
			promotions:   &fakePromotions{promos: promos},
			wantDegraded: []string{FieldStores},
			check: func(t *testing.T, b models.ContextBundle) {
				assert.NotNil(t, b.Profile)
				assert.Empty(t, b.NearbyStores)
				require.Len(t, b.ActivePromotions, 1)
				assert.Equal(t, "p3", b.ActivePromotions[0].PromoID)
			},
		},
		{
			name:         "everything fails",
			profiles:     fakeProfiles{err: boom},
			stores:       &fakeStores{err: boom},
			promotions:   &fakePromotions{err: boom},
			wantDegraded: []string{FieldProfile, FieldStores, FieldPromotions},
			check: func(t *testing.T, b models.ContextBundle) {
				assert.Nil(t, b.Profile)
				assert.Empty(t, b.NearbyStores)
				assert.Empty(t, b.ActivePromotions)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(tt.profiles, tt.stores, tt.promotions).Enrich(context.Background(), "u1", loc)
			assert.Equal(t, tt.wantDegraded, res.Degraded)
			tt.check(t, res.Bundle)
		})
	}
}

func TestEnrich_MaxStores(t *testing.T) {
	_, stores, _ := fixtures()
	res := New(nil, &fakeStores{stores: stores}, nil, WithMaxStores(1)).
		Enrich(context.Background(), "", &models.Location{})
	require.Len(t, res.Bundle.NearbyStores, 1)
	assert.Equal(t, "s1", res.Bundle.NearbyStores[0].StoreID)
}

func TestEnrich_DropsInactivePromotions(t *testing.T) {
	ended := testNow.Add(-time.Hour)
	promos := []models.Promotion{
		{PromoID: "live", Active: true},
		{PromoID: "off", Active: false},
		{PromoID: "ended", Active: true, EndsAt: &ended},
	}
	res := New(nil, nil, &fakePromotions{promos: promos}, WithClock(func() time.Time { return testNow })).
		Enrich(context.Background(), "", nil)
	require.Len(t, res.Bundle.ActivePromotions, 1)
	assert.Equal(t, "live", res.Bundle.ActivePromotions[0].PromoID)
}

func TestEnrich_LookupTimeout(t *testing.T) {
	slow := &blockingStores{}
	res := New(nil, slow, nil, WithTimeout(20*time.Millisecond)).
		Enrich(context.Background(), "", &models.Location{})
	assert.Equal(t, []string{FieldStores}, res.Degraded)
}

type blockingStores struct{}

func (blockingStores) NearbyStores(ctx context.Context, _ models.Location, _ float64) ([]models.Store, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFilterPromotions(t *testing.T) {
	_, stores, promos := fixtures()
	got := FilterPromotions(promos, stores[:1])
	want := []models.Promotion{promos[0], promos[2]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FilterPromotions mismatch (-want +got):\n%s", diff)
	}
	assert.NotNil(t, FilterPromotions(nil, nil))
}
