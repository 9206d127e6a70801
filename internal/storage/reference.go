package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperjump/concierge/internal/models"
)

// UpsertProfile inserts or replaces a customer profile.
func (s *SQLiteStorage) UpsertProfile(ctx context.Context, p *models.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, data) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET data = excluded.data`,
		p.UserID, string(data),
	)
	return err
}

// Profile returns the profile for userID, or nil without error when the user is unknown.
func (s *SQLiteStorage) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = ?`, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile %s: %w", userID, err)
	}
	return &p, nil
}

// UpsertStore inserts or replaces a store. Updates keep the store's original position.
func (s *SQLiteStorage) UpsertStore(ctx context.Context, st *models.Store) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO stores (store_id, lat, lng, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(store_id) DO UPDATE SET lat = excluded.lat, lng = excluded.lng, data = excluded.data`,
		st.StoreID, st.Location.Lat, st.Location.Lng, string(data),
	)
	return err
}

// Stores returns all stores in insertion order.
func (s *SQLiteStorage) Stores(ctx context.Context) ([]models.Store, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM stores ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []models.Store
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var st models.Store
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, fmt.Errorf("failed to unmarshal store: %w", err)
		}
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

// NearbyStores returns stores within radiusM of loc, nearest first.
func (s *SQLiteStorage) NearbyStores(ctx context.Context, loc models.Location, radiusM float64) ([]models.Store, error) {
	stores, err := s.Stores(ctx)
	if err != nil {
		return nil, err
	}
	nearby := models.WithinRadius(stores, loc, radiusM)
	for i := range nearby {
		nearby[i].Source = "fixture"
	}
	return nearby, nil
}

// UpsertPromotion inserts or replaces a promotion.
func (s *SQLiteStorage) UpsertPromotion(ctx context.Context, p *models.Promotion) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal promotion: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO promotions (promo_id, store_id, active, starts_at, ends_at, data)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(promo_id) DO UPDATE SET store_id = excluded.store_id, active = excluded.active,
		 starts_at = excluded.starts_at, ends_at = excluded.ends_at, data = excluded.data`,
		p.PromoID, nullString(p.StoreID), p.Active, formatTime(p.StartsAt), formatTime(p.EndsAt), string(data),
	)
	return err
}

// Promotions returns all promotions in insertion order.
func (s *SQLiteStorage) Promotions(ctx context.Context) ([]models.Promotion, error) {
	return s.queryPromotions(ctx, `SELECT data FROM promotions ORDER BY rowid`)
}

// ActivePromotions returns promotions live at now, in insertion order.
func (s *SQLiteStorage) ActivePromotions(ctx context.Context, now time.Time) ([]models.Promotion, error) {
	all, err := s.queryPromotions(ctx, `SELECT data FROM promotions WHERE active = 1 ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, p := range all {
		if p.ActiveAt(now) {
			active = append(active, p)
		}
	}
	return active, nil
}

func (s *SQLiteStorage) queryPromotions(ctx context.Context, query string) ([]models.Promotion, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promos []models.Promotion
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p models.Promotion
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal promotion: %w", err)
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}
