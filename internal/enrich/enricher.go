// Package enrich gathers the structured context for a request: the customer's profile,
// stores near their location and the promotions that apply. Lookups run concurrently and
// a failed lookup only empties its own field.
package enrich

import (
	"context"
	"time"

	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProfileProvider looks up customer profiles. Unknown users yield nil, nil.
type ProfileProvider interface {
	Profile(ctx context.Context, userID string) (*models.Profile, error)
}

// StoreProvider finds stores within radiusM meters of loc, nearest first.
type StoreProvider interface {
	NearbyStores(ctx context.Context, loc models.Location, radiusM float64) ([]models.Store, error)
}

// PromotionProvider lists promotions active at now.
type PromotionProvider interface {
	ActivePromotions(ctx context.Context, now time.Time) ([]models.Promotion, error)
}

// Context fields reported in Result.Degraded.
const (
	FieldProfile    = "profile"
	FieldStores     = "stores"
	FieldPromotions = "promotions"
)

const (
	defaultRadiusM   = 500
	defaultMaxStores = 10
)

// Result is an enrichment bundle plus the fields whose lookup failed.
type Result struct {
	Bundle   models.ContextBundle
	Degraded []string
}

// Enricher builds context bundles from read-only providers.
type Enricher struct {
	profiles   ProfileProvider
	stores     StoreProvider
	promotions PromotionProvider
	radiusM    float64
	maxStores  int
	timeout    time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithClock sets the clock used to decide which promotions are active.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) { e.now = now }
}

// WithLogger sets a logger for degraded lookups.
func WithLogger(l *zap.Logger) Option {
	return func(e *Enricher) { e.logger = utils.OrNop(l) }
}

// WithRadius sets the store search radius in meters. Non-positive values keep the default.
func WithRadius(m float64) Option {
	return func(e *Enricher) {
		if m > 0 {
			e.radiusM = m
		}
	}
}

// WithMaxStores caps the number of stores in a bundle. Zero or less means no cap.
func WithMaxStores(n int) Option {
	return func(e *Enricher) { e.maxStores = n }
}

// WithTimeout bounds each lookup. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Enricher) { e.timeout = d }
}

// New creates an Enricher. Any provider may be nil, which leaves its field empty.
func New(profiles ProfileProvider, stores StoreProvider, promotions PromotionProvider, opts ...Option) *Enricher {
	e := &Enricher{
		profiles:   profiles,
		stores:     stores,
		promotions: promotions,
		radiusM:    defaultRadiusM,
		maxStores:  defaultMaxStores,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig creates an Enricher from enrichment settings.
func NewFromConfig(cfg config.EnrichmentConfig, profiles ProfileProvider, stores StoreProvider, promotions PromotionProvider, logger *zap.Logger) *Enricher {
	return New(profiles, stores, promotions,
		WithRadius(cfg.StoreRadiusM),
		WithMaxStores(cfg.MaxStores),
		WithTimeout(cfg.Timeout),
		WithLogger(logger))
}

// Enrich gathers the context bundle for userID at loc. It waits for all lookups and
// never fails: a failed lookup leaves its field empty and is listed in Degraded.
// Stores are only looked up when loc is set. Promotions tied to a store are kept only
// when that store is among the nearby stores.
func (e *Enricher) Enrich(ctx context.Context, userID string, loc *models.Location) Result {
	now := e.now()
	var (
		profile                          *models.Profile
		stores                           []models.Store
		promos                           []models.Promotion
		profileErr, storesErr, promosErr error
		g                                errgroup.Group
	)
	if e.profiles != nil && userID != "" {
		g.Go(func() error {
			ctx, cancel := e.lookupContext(ctx)
			defer cancel()
			profile, profileErr = e.profiles.Profile(ctx, userID)
			return nil
		})
	}
	if e.stores != nil && loc != nil {
		g.Go(func() error {
			ctx, cancel := e.lookupContext(ctx)
			defer cancel()
			stores, storesErr = e.stores.NearbyStores(ctx, *loc, e.radiusM)
			return nil
		})
	}
	if e.promotions != nil {
		g.Go(func() error {
			ctx, cancel := e.lookupContext(ctx)
			defer cancel()
			promos, promosErr = e.promotions.ActivePromotions(ctx, now)
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	if e.degrade(&res, FieldProfile, profileErr) {
		profile = nil
	}
	if e.degrade(&res, FieldStores, storesErr) {
		stores = nil
	}
	if e.degrade(&res, FieldPromotions, promosErr) {
		promos = nil
	}
	if e.maxStores > 0 && len(stores) > e.maxStores {
		stores = stores[:e.maxStores]
	}
	res.Bundle = models.ContextBundle{
		Profile:          profile,
		NearbyStores:     append([]models.Store{}, stores...),
		ActivePromotions: FilterPromotions(activeAt(promos, now), stores),
	}
	return res
}

func (e *Enricher) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Enricher) degrade(res *Result, field string, err error) bool {
	if err == nil {
		return false
	}
	res.Degraded = append(res.Degraded, field)
	e.logger.Warn("enrichment lookup failed", zap.String("field", field), zap.Error(err))
	return true
}

func activeAt(promos []models.Promotion, now time.Time) []models.Promotion {
	out := promos[:0:0]
	for i := range promos {
		if promos[i].ActiveAt(now) {
			out = append(out, promos[i])
		}
	}
	return out
}

// FilterPromotions keeps promotions without a store and promotions whose store is in
// stores. Order is preserved. The result is never nil.
func FilterPromotions(promos []models.Promotion, stores []models.Store) []models.Promotion {
	near := make(map[string]bool, len(stores))
	for _, s := range stores {
		near[s.StoreID] = true
	}
	out := make([]models.Promotion, 0, len(promos))
	for _, p := range promos {
		if p.StoreID == "" || near[p.StoreID] {
			out = append(out, p)
		}
	}
	return out
}
