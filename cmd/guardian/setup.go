package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/config"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/httputil"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/identity"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/overpass"
)

const overpassTimeout = 30 * time.Second

// loadZones returns the hazard zones for the run: the zone file (or the
// built-in zones), plus nearby supermarkets when overpassAt is set. An
// Overpass failure is logged and the static zones are used alone. client
// may be nil.
func loadZones(ctx context.Context, cfg *config.GuardianConfig, zonesPath, overpassAt string, client httputil.HTTPClient) ([]movement.HazardZone, error) {
	zones := config.DefaultZones()
	if zonesPath != "" {
		var err error
		if zones, err = config.LoadZones(zonesPath); err != nil {
			return nil, err
		}
	}
	if overpassAt == "" {
		return zones, nil
	}

	lat, lon, err := parseLatLon(overpassAt)
	if err != nil {
		return nil, fmt.Errorf("invalid -overpass: %w", err)
	}
	if client == nil {
		client = httputil.NewStandardClient(overpassTimeout)
	}
	oc := overpass.NewClient(client, cfg.GetOverpassURL(), cfg.GetOverpassRadiusM(), cfg.GetOverpassZoneRadiusM())

	ctx, cancel := context.WithTimeout(ctx, overpassTimeout)
	defer cancel()
	stores, err := oc.Supermarkets(ctx, lat, lon)
	if err != nil {
		log.Printf("supermarket zones unavailable: %v", err)
		return zones, nil
	}
	log.Printf("added %d supermarket zones around %.5f,%.5f", len(stores), lat, lon)
	return append(zones, stores...), nil
}

// parseLatLon parses "lat,lon".
func parseLatLon(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("coordinates out of range: %v,%v", lat, lon)
	}
	return lat, lon, nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// subjectProvider picks the identity source for payloads without a
// subject. A uid is resolved through the registry; otherwise the static id
// is used, which may be blank.
func subjectProvider(lookup identity.SubjectLookup, uid, static string) identity.Provider {
	if strings.TrimSpace(uid) != "" {
		return identity.Registry{Lookup: lookup, UID: uid}
	}
	return identity.Static(static)
}
