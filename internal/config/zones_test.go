package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

func TestLoadZonesFormats(t *testing.T) {
	want := []movement.HazardZone{
		{Name: "pond", Latitude: 3.139, Longitude: 101.6868, RadiusM: 5},
		{Name: "road", Latitude: 3.1394, Longitude: 101.6873, RadiusM: 12.5},
	}

	tests := []struct {
		name string
		file string
		body string
	}{
		{"YAMLWrapped", "zones.yaml", `
zones:
  - name: pond
    lat: 3.139
    lon: 101.6868
    radius_m: 5
  - name: road
    lat: 3.1394
    lon: 101.6873
    radius_m: 12.5
`},
		{"YAMLBareList", "zones.yml", `
- {name: pond, lat: 3.139, lon: 101.6868, radius_m: 5}
- {name: road, lat: 3.1394, lon: 101.6873, radius_m: 12.5}
`},
		{"JSONWrapped", "zones.json", `{"zones": [
  {"name": "pond", "lat": 3.139, "lon": 101.6868, "radius_m": 5},
  {"name": "road", "lat": 3.1394, "lon": 101.6873, "radius_m": 12.5}
]}`},
		{"JSONBareList", "zones.json", `[
  {"name": "pond", "lat": 3.139, "lon": 101.6868, "radius_m": 5},
  {"name": "road", "lat": 3.1394, "lon": 101.6873, "radius_m": 12.5}
]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadZones(writeFile(t, tt.file, tt.body))
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("zones mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadZonesDefaultsRadius(t *testing.T) {
	got, err := LoadZones(writeFile(t, "z.yaml", "zones:\n  - {name: gate, lat: 1, lon: 2}\n"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, float32(DefaultZoneRadiusM), got[0].RadiusM)
}

func TestLoadZonesEmpty(t *testing.T) {
	got, err := LoadZones(writeFile(t, "z.json", `{"zones": []}`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadZonesErrors(t *testing.T) {
	_, err := LoadZones(writeFile(t, "z.toml", ""))
	assert.ErrorContains(t, err, ".json, .yaml or .yml")

	_, err = LoadZones(writeFile(t, "z.yaml", "zones:\n  - {name: x, lat: 95, lon: 0, radius_m: 5}\n"))
	assert.ErrorContains(t, err, "out of range")

	_, err = LoadZones(writeFile(t, "z.json", `[{"name": "x", "lat": 0, "lon": 0, "radius_m": -3}]`))
	assert.ErrorContains(t, err, "radius_m must be positive")

	_, err = LoadZones(writeFile(t, "z.json", `{"zones": "nope"`))
	assert.ErrorContains(t, err, "failed to parse zone file")

	_, err = LoadZones(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestExampleZonesFile(t *testing.T) {
	var got []movement.HazardZone
	var err error
	for _, p := range []string{"config/zones.example.yaml", "../../config/zones.example.yaml"} {
		if got, err = LoadZones(p); err == nil {
			break
		}
	}
	require.NoError(t, err)
	assert.Equal(t, DefaultZones(), got)
}
