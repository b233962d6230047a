// Package overpass fetches supermarket locations from an Overpass API
// endpoint and turns them into hazard zones.
package overpass

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/httputil"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

const defaultZoneName = "Supermarket"

// Client queries one Overpass interpreter endpoint.
type Client struct {
	http     httputil.HTTPClient
	endpoint string
	// SearchRadiusM is the radius around the query point, ZoneRadiusM the
	// radius given to each resulting zone.
	SearchRadiusM float64
	ZoneRadiusM   float64
}

// NewClient returns a Client posting queries to endpoint.
func NewClient(c httputil.HTTPClient, endpoint string, searchRadiusM, zoneRadiusM float64) *Client {
	return &Client{
		http:          c,
		endpoint:      endpoint,
		SearchRadiusM: searchRadiusM,
		ZoneRadiusM:   zoneRadiusM,
	}
}

type response struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *center           `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Query returns the Overpass QL selecting supermarkets within radiusM of
// (lat, lon). Ways and relations report their centre.
func Query(lat, lon, radiusM float64) string {
	return fmt.Sprintf(`[out:json][timeout:25];
nwr["shop"="supermarket"](around:%.0f,%.6f,%.6f);
out center;`, radiusM, lat, lon)
}

// Supermarkets returns a hazard zone for every supermarket near (lat, lon).
// Elements without a position are skipped.
func (c *Client) Supermarkets(ctx context.Context, lat, lon float64) ([]movement.HazardZone, error) {
	form := url.Values{"data": {Query(lat, lon, c.SearchRadiusM)}}
	req, err := http.NewRequest(http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp response
	if err := httputil.DoJSON(ctx, c.http, req, &resp); err != nil {
		return nil, fmt.Errorf("overpass query failed: %w", err)
	}

	zones := make([]movement.HazardZone, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		var zLat, zLon float64
		switch {
		case el.Lat != nil && el.Lon != nil:
			zLat, zLon = *el.Lat, *el.Lon
		case el.Center != nil:
			zLat, zLon = el.Center.Lat, el.Center.Lon
		default:
			continue
		}
		name := strings.TrimSpace(el.Tags["name"])
		if name == "" {
			name = defaultZoneName
		}
		zones = append(zones, movement.HazardZone{
			Name:      name,
			Latitude:  zLat,
			Longitude: zLon,
			RadiusM:   float32(c.ZoneRadiusM),
		})
	}
	return zones, nil
}
