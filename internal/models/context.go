package models

import (
	"math"
	"sort"
	"time"

	"github.com/hyperjump/concierge/pkg/utils"
)

// Location is a geographic point in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Preferences captures what a customer likes.
type Preferences struct {
	FavoriteDrinks       []string `json:"favorite_drinks,omitempty"`
	Dietary              []string `json:"dietary,omitempty"`
	PreferredTemperature string   `json:"preferred_temperature,omitempty"`
}

// Purchase is a single past order.
type Purchase struct {
	Item string `json:"item"`
	Date string `json:"date"`
}

// Profile is a customer's reference record. It may contain PII.
type Profile struct {
	UserID          string      `json:"user_id"`
	Name            string      `json:"name"`
	Phone           string      `json:"phone,omitempty"`
	Email           string      `json:"email,omitempty"`
	Preferences     Preferences `json:"preferences"`
	PurchaseHistory []Purchase  `json:"purchase_history,omitempty"`
	LoyaltyPoints   int         `json:"loyalty_points"`
}

// Hours are a store's opening hours as free-form strings ("07:00", "Mo-Fr 08:00-18:00").
type Hours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Store is a place the concierge can recommend. DistanceM is filled per request.
type Store struct {
	StoreID      string   `json:"store_id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Location     Location `json:"location"`
	Hours        Hours    `json:"hours"`
	PopularItems []string `json:"popular_items,omitempty"`
	DistanceM    float64  `json:"distance_m,omitempty"`
	Source       string   `json:"source,omitempty"`
}

// Promotion is an offer. An empty StoreID means it is not tied to a store.
type Promotion struct {
	PromoID         string     `json:"promo_id"`
	StoreID         string     `json:"store_id,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	ApplicableItems []string   `json:"applicable_items,omitempty"`
	Active          bool       `json:"active"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
}

// ActiveAt reports whether the promotion is live at now.
func (p *Promotion) ActiveAt(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && !now.Before(*p.EndsAt) {
		return false
	}
	return true
}

// ContextBundle is the structured context gathered for one request. Any field may be empty.
type ContextBundle struct {
	Profile          *Profile    `json:"profile,omitempty"`
	NearbyStores     []Store     `json:"nearby_stores"`
	ActivePromotions []Promotion `json:"active_promotions"`
}

// WithinRadius returns copies of stores no farther than radiusM from loc, with DistanceM
// set (rounded to whole meters) and sorted by ascending distance. Ties keep input order.
func WithinRadius(stores []Store, loc Location, radiusM float64) []Store {
	type ranked struct {
		store Store
		dist  float64
	}
	var hits []ranked
	for _, s := range stores {
		d := utils.HaversineMeters(loc.Lat, loc.Lng, s.Location.Lat, s.Location.Lng)
		if d > radiusM {
			continue
		}
		s.DistanceM = math.Round(d)
		hits = append(hits, ranked{store: s, dist: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]Store, len(hits))
	for i, h := range hits {
		out[i] = h.store
	}
	return out
}
