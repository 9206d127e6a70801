// Package places looks up live nearby venues from OpenStreetMap through the Overpass API.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/pkg/utils"
)

// DefaultOverpassURL is the public Overpass interpreter endpoint.
const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

const defaultLimit = 6

// OverpassStores implements a store provider backed by the Overpass API.
type OverpassStores struct {
	baseURL string
	limit   int
	client  *http.Client
}

// NewOverpassStores creates an Overpass store provider. timeout bounds each request.
func NewOverpassStores(baseURL string, timeout time.Duration) *OverpassStores {
	if baseURL == "" {
		baseURL = DefaultOverpassURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OverpassStores{
		baseURL: baseURL,
		limit:   defaultLimit,
		client:  &http.Client{Timeout: timeout},
	}
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	ID   int64             `json:"id"`
	Lat  *float64          `json:"lat"`
	Lon  *float64          `json:"lon"`
	Tags map[string]string `json:"tags"`
}

// query selects cafes, restaurants, fast food and coffee/convenience shops around a point.
func query(loc models.Location, radiusM float64) string {
	around := fmt.Sprintf("(around:%s,%s,%s)",
		strconv.FormatFloat(radiusM, 'f', 0, 64),
		strconv.FormatFloat(loc.Lat, 'f', -1, 64),
		strconv.FormatFloat(loc.Lng, 'f', -1, 64))
	return `[out:json][timeout:25];
(
  node["amenity"~"cafe|restaurant|fast_food"]` + around + `;
  node["shop"~"coffee|convenience"]` + around + `;
);
out body;`
}

// NearbyStores returns live venues within radiusM of loc, nearest first.
func (o *OverpassStores) NearbyStores(ctx context.Context, loc models.Location, radiusM float64) ([]models.Store, error) {
	form := url.Values{"data": {query(loc, radiusM)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Overpass: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Overpass returned status %d", resp.StatusCode)
	}
	var body overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	stores := make([]models.Store, 0, min(len(body.Elements), o.limit))
	for _, el := range body.Elements {
		if len(stores) == o.limit {
			break
		}
		if el.Lat == nil || el.Lon == nil {
			continue
		}
		stores = append(stores, toStore(el, loc))
	}
	sort.SliceStable(stores, func(i, j int) bool { return stores[i].DistanceM < stores[j].DistanceM })
	return stores, nil
}

func toStore(el overpassElement, from models.Location) models.Store {
	tags := el.Tags
	name := firstNonEmpty(tags["name"], tags["brand"], "Nearby Spot")
	hours := firstNonEmpty(tags["opening_hours"], "Unknown")
	return models.Store{
		StoreID:   "live_" + strconv.FormatInt(el.ID, 10),
		Name:      name,
		Type:      firstNonEmpty(tags["amenity"], tags["shop"], "venue"),
		Location:  models.Location{Lat: *el.Lat, Lng: *el.Lon},
		Hours:     models.Hours{Open: hours},
		DistanceM: math.Round(utils.HaversineMeters(from.Lat, from.Lng, *el.Lat, *el.Lon)),
		Source:    "live",
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
