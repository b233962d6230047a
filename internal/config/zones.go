package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

// DefaultZoneRadiusM is the radius given to zones that omit one.
const DefaultZoneRadiusM = 5

// zoneFile is the on-disk layout. A bare list of zones is accepted too.
type zoneFile struct {
	Zones []movement.HazardZone `json:"zones" yaml:"zones"`
}

// DefaultZones returns the built-in hazard zones used when no zone file is
// configured.
func DefaultZones() []movement.HazardZone {
	return []movement.HazardZone{
		{Name: "Escalator A", Latitude: 3.1415, Longitude: 101.6875, RadiusM: DefaultZoneRadiusM},
		{Name: "Exit B", Latitude: 3.1420, Longitude: 101.6880, RadiusM: DefaultZoneRadiusM},
	}
}

// LoadZones reads hazard zones from a .json, .yaml or .yml file. The zone
// list is loaded once at startup and never modified afterwards.
func LoadZones(path string) ([]movement.HazardZone, error) {
	cleanPath := filepath.Clean(path)
	data, err := readBounded(cleanPath)
	if err != nil {
		return nil, err
	}

	var zones []movement.HazardZone
	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".json":
		zones, err = parseZones(data, json.Unmarshal)
	case ".yaml", ".yml":
		zones, err = parseZones(data, yaml.Unmarshal)
	default:
		return nil, fmt.Errorf("zone file must be .json, .yaml or .yml, got %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse zone file %s: %w", cleanPath, err)
	}

	for i := range zones {
		if zones[i].RadiusM == 0 {
			zones[i].RadiusM = DefaultZoneRadiusM
		}
	}
	if err := ValidateZones(zones); err != nil {
		return nil, err
	}
	return zones, nil
}

func parseZones(data []byte, unmarshal func([]byte, any) error) ([]movement.HazardZone, error) {
	var wrapped zoneFile
	if err := unmarshal(data, &wrapped); err == nil && wrapped.Zones != nil {
		return wrapped.Zones, nil
	}
	var bare []movement.HazardZone
	if err := unmarshal(data, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

// ValidateZones checks coordinates and radii.
func ValidateZones(zones []movement.HazardZone) error {
	for i, z := range zones {
		if z.Latitude < -90 || z.Latitude > 90 || z.Longitude < -180 || z.Longitude > 180 {
			return fmt.Errorf("zone #%d (%s): coordinates out of range: %f,%f", i+1, z.Name, z.Latitude, z.Longitude)
		}
		if z.RadiusM <= 0 {
			return fmt.Errorf("zone #%d (%s): radius_m must be positive, got %f", i+1, z.Name, z.RadiusM)
		}
	}
	return nil
}
