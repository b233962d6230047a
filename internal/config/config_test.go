package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, movement.DefaultAnalyzerConfig(), cfg.AnalyzerConfig())
	assert.Equal(t, movement.DefaultMotionThresholds(), cfg.MotionThresholds())
	assert.Equal(t, 6, cfg.GetHistoryCapacity())
	assert.Equal(t, 2, cfg.GetDispatchWorkers())
	assert.Equal(t, 64, cfg.GetDispatchQueueSize())
	assert.Equal(t, 10*time.Second, cfg.GetDispatchTimeout())
	assert.Zero(t, cfg.GetAlertCooldown())
	assert.Equal(t, "guardian", cfg.GetMQTTTopicPrefix())
	assert.Equal(t, "guardian.alerts", cfg.GetKafkaTopic())
	assert.Equal(t, 50.0, cfg.GetOverpassZoneRadiusM())
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	assert.Equal(t, movement.DefaultAnalyzerConfig(), cfg.AnalyzerConfig())
	assert.Equal(t, movement.DefaultMotionThresholds(), cfg.MotionThresholds())
	assert.Equal(t, EmptyConfig().GetDispatchTimeout(), cfg.GetDispatchTimeout())
	assert.Equal(t, EmptyConfig().GetOverpassURL(), cfg.GetOverpassURL())
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "guardian.json", `{
  "speed_threshold_mps": 2.5,
  "bearing_mode": "geodesic",
  "anchor": "fixed",
  "home_lat": 3.14,
  "home_lon": 101.68,
  "shake_interval": "750ms",
  "alert_cooldown": "30s",
  "dispatch_workers": 4
}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	ac := cfg.AnalyzerConfig()
	assert.Equal(t, 2.5, ac.SpeedThresholdMps)
	assert.Equal(t, 45.0, ac.BearingThresholdDeg, "omitted fields keep defaults")
	assert.Equal(t, movement.BearingGeodesic, ac.BearingMode)
	assert.Equal(t, movement.AnchorFixed, ac.Anchor)
	assert.Equal(t, 3.14, ac.Home.Latitude)
	assert.Equal(t, int64(750), cfg.MotionThresholds().ShakeIntervalMs)
	assert.Equal(t, 30*time.Second, cfg.GetAlertCooldown())
	assert.Equal(t, 4, cfg.GetDispatchWorkers())
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"WrongExtension", "guardian.yaml", `{}`, ".json extension"},
		{"BadJSON", "bad.json", `{`, "failed to parse"},
		{"NegativeSpeed", "c.json", `{"speed_threshold_mps": -1}`, "speed_threshold_mps must be positive"},
		{"BadBearingMode", "c.json", `{"bearing_mode": "spherical"}`, "bearing_mode"},
		{"FixedWithoutHome", "c.json", `{"anchor": "fixed"}`, "requires home_lat"},
		{"BadDuration", "c.json", `{"shake_interval": "soon"}`, "invalid shake_interval"},
		{"SmallHistory", "c.json", `{"history_capacity": 2}`, "history_capacity"},
		{"MinSamplesOverCapacity", "c.json", `{"history_capacity": 4, "min_samples": 5}`, "exceeds history_capacity"},
		{"ThresholdOrder", "c.json", `{"run_threshold": 20}`, "jump > run > shake"},
		{"WanderingScore", "c.json", `{"wandering_score": 4}`, "wandering_score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat")
}

func TestLoadConfigTooLarge(t *testing.T) {
	body := `{"kafka_topic": "` + strings.Repeat("a", maxFileSize) + `"}`
	_, err := LoadConfig(writeFile(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestDurationFallback(t *testing.T) {
	cfg := &GuardianConfig{DispatchTimeout: ptrString("nonsense"), DispatchWorkers: ptrInt(1), OverpassRadiusM: ptrFloat64(250)}
	assert.Equal(t, 10*time.Second, cfg.GetDispatchTimeout(), "unparseable durations fall back")
	assert.Equal(t, 250.0, cfg.GetOverpassRadiusM())
}
