package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/guardian.defaults.json"

// maxFileSize bounds config and zone files.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// GuardianConfig is the service configuration. Every field is optional; the
// Get* accessors supply defaults for anything omitted, so partial files are
// safe.
type GuardianConfig struct {
	// History and wandering analysis
	HistoryCapacity      *int     `json:"history_capacity,omitempty"`
	MinSamples           *int     `json:"min_samples,omitempty"`
	SpeedThresholdMps    *float64 `json:"speed_threshold_mps,omitempty"`
	BearingThresholdDeg  *float64 `json:"bearing_threshold_deg,omitempty"`
	DispersionThresholdM *float64 `json:"dispersion_threshold_m,omitempty"`
	WanderingScore       *int     `json:"wandering_score,omitempty"`
	BearingMode          *string  `json:"bearing_mode,omitempty"` // "planar" or "geodesic"
	Anchor               *string  `json:"anchor,omitempty"`       // "rolling" or "fixed"
	HomeLat              *float64 `json:"home_lat,omitempty"`
	HomeLon              *float64 `json:"home_lon,omitempty"`

	// Motion classification, m/s²
	JumpThreshold  *float64 `json:"jump_threshold,omitempty"`
	RunThreshold   *float64 `json:"run_threshold,omitempty"`
	ShakeThreshold *float64 `json:"shake_threshold,omitempty"`
	ShakeDelta     *float64 `json:"shake_delta,omitempty"`
	ShakeInterval  *string  `json:"shake_interval,omitempty"` // duration string like "500ms"

	// Alert dispatch
	DispatchWorkers   *int    `json:"dispatch_workers,omitempty"`
	DispatchQueueSize *int    `json:"dispatch_queue_size,omitempty"`
	DispatchTimeout   *string `json:"dispatch_timeout,omitempty"`
	AlertCooldown     *string `json:"alert_cooldown,omitempty"` // "0s" disables

	// Transports
	MQTTTopicPrefix *string `json:"mqtt_topic_prefix,omitempty"`
	MQTTClientID    *string `json:"mqtt_client_id,omitempty"`
	KafkaTopic      *string `json:"kafka_topic,omitempty"`

	// Overpass supermarket zones
	OverpassURL         *string  `json:"overpass_url,omitempty"`
	OverpassRadiusM     *float64 `json:"overpass_radius_m,omitempty"`
	OverpassZoneRadiusM *float64 `json:"overpass_zone_radius_m,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a GuardianConfig with all fields unset.
func EmptyConfig() *GuardianConfig {
	return &GuardianConfig{}
}

// LoadConfig loads a GuardianConfig from a JSON file. The file must have a
// .json extension and be at most 1MB.
func LoadConfig(path string) (*GuardianConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := readBounded(cleanPath)
	if err != nil {
		return nil, err
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up to the repository root. Panics if the file cannot be loaded;
// intended for test setup.
func MustLoadDefaultConfig() *GuardianConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func readBounded(path string) ([]byte, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// Validate checks that the configuration values are valid.
func (c *GuardianConfig) Validate() error {
	if c.HistoryCapacity != nil && *c.HistoryCapacity < 3 {
		return fmt.Errorf("history_capacity must be at least 3, got %d", *c.HistoryCapacity)
	}
	if c.MinSamples != nil && *c.MinSamples < 3 {
		return fmt.Errorf("min_samples must be at least 3, got %d", *c.MinSamples)
	}
	if c.HistoryCapacity != nil && c.MinSamples != nil && *c.MinSamples > *c.HistoryCapacity {
		return fmt.Errorf("min_samples (%d) exceeds history_capacity (%d)", *c.MinSamples, *c.HistoryCapacity)
	}
	if c.WanderingScore != nil && (*c.WanderingScore < 1 || *c.WanderingScore > 3) {
		return fmt.Errorf("wandering_score must be between 1 and 3, got %d", *c.WanderingScore)
	}

	for name, v := range map[string]*float64{
		"speed_threshold_mps":    c.SpeedThresholdMps,
		"bearing_threshold_deg":  c.BearingThresholdDeg,
		"dispersion_threshold_m": c.DispersionThresholdM,
		"jump_threshold":         c.JumpThreshold,
		"run_threshold":          c.RunThreshold,
		"shake_threshold":        c.ShakeThreshold,
		"shake_delta":            c.ShakeDelta,
		"overpass_zone_radius_m": c.OverpassZoneRadiusM,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	if c.BearingThresholdDeg != nil && *c.BearingThresholdDeg > 180 {
		return fmt.Errorf("bearing_threshold_deg must be at most 180, got %f", *c.BearingThresholdDeg)
	}
	if c.GetJumpThreshold() <= c.GetRunThreshold() || c.GetRunThreshold() <= c.GetShakeThreshold() {
		return fmt.Errorf("motion thresholds must satisfy jump > run > shake, got %g/%g/%g",
			c.GetJumpThreshold(), c.GetRunThreshold(), c.GetShakeThreshold())
	}

	if c.BearingMode != nil {
		switch movement.BearingMode(*c.BearingMode) {
		case movement.BearingPlanar, movement.BearingGeodesic:
		default:
			return fmt.Errorf("bearing_mode must be %q or %q, got %q", movement.BearingPlanar, movement.BearingGeodesic, *c.BearingMode)
		}
	}
	if c.Anchor != nil {
		switch movement.AnchorMode(*c.Anchor) {
		case movement.AnchorRolling:
		case movement.AnchorFixed:
			if c.HomeLat == nil || c.HomeLon == nil {
				return fmt.Errorf("anchor %q requires home_lat and home_lon", *c.Anchor)
			}
		default:
			return fmt.Errorf("anchor must be %q or %q, got %q", movement.AnchorRolling, movement.AnchorFixed, *c.Anchor)
		}
	}
	if c.HomeLat != nil && (*c.HomeLat < -90 || *c.HomeLat > 90) {
		return fmt.Errorf("home_lat out of range: %f", *c.HomeLat)
	}
	if c.HomeLon != nil && (*c.HomeLon < -180 || *c.HomeLon > 180) {
		return fmt.Errorf("home_lon out of range: %f", *c.HomeLon)
	}

	if c.DispatchWorkers != nil && *c.DispatchWorkers < 1 {
		return fmt.Errorf("dispatch_workers must be at least 1, got %d", *c.DispatchWorkers)
	}
	if c.DispatchQueueSize != nil && *c.DispatchQueueSize < 1 {
		return fmt.Errorf("dispatch_queue_size must be at least 1, got %d", *c.DispatchQueueSize)
	}

	for name, v := range map[string]*string{
		"shake_interval":   c.ShakeInterval,
		"dispatch_timeout": c.DispatchTimeout,
		"alert_cooldown":   c.AlertCooldown,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, *v)
		}
	}

	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetHistoryCapacity returns the history_capacity value or the default.
func (c *GuardianConfig) GetHistoryCapacity() int {
	if c.HistoryCapacity == nil {
		return movement.DefaultHistoryCapacity
	}
	return *c.HistoryCapacity
}

// AnalyzerConfig assembles the wandering analyzer settings.
func (c *GuardianConfig) AnalyzerConfig() movement.AnalyzerConfig {
	cfg := movement.DefaultAnalyzerConfig()
	if c.MinSamples != nil {
		cfg.MinSamples = *c.MinSamples
	}
	if c.SpeedThresholdMps != nil {
		cfg.SpeedThresholdMps = *c.SpeedThresholdMps
	}
	if c.BearingThresholdDeg != nil {
		cfg.BearingThresholdDeg = *c.BearingThresholdDeg
	}
	if c.DispersionThresholdM != nil {
		cfg.DispersionThresholdM = *c.DispersionThresholdM
	}
	if c.WanderingScore != nil {
		cfg.WanderingScore = *c.WanderingScore
	}
	if c.BearingMode != nil {
		cfg.BearingMode = movement.BearingMode(*c.BearingMode)
	}
	if c.Anchor != nil {
		cfg.Anchor = movement.AnchorMode(*c.Anchor)
	}
	if c.HomeLat != nil && c.HomeLon != nil {
		cfg.Home = movement.PositionSample{Latitude: *c.HomeLat, Longitude: *c.HomeLon}
	}
	return cfg
}

// GetJumpThreshold returns the jump_threshold value or the default.
func (c *GuardianConfig) GetJumpThreshold() float64 {
	if c.JumpThreshold == nil {
		return movement.DefaultMotionThresholds().Jump
	}
	return *c.JumpThreshold
}

// GetRunThreshold returns the run_threshold value or the default.
func (c *GuardianConfig) GetRunThreshold() float64 {
	if c.RunThreshold == nil {
		return movement.DefaultMotionThresholds().Run
	}
	return *c.RunThreshold
}

// GetShakeThreshold returns the shake_threshold value or the default.
func (c *GuardianConfig) GetShakeThreshold() float64 {
	if c.ShakeThreshold == nil {
		return movement.DefaultMotionThresholds().Shake
	}
	return *c.ShakeThreshold
}

// MotionThresholds assembles the motion classifier settings.
func (c *GuardianConfig) MotionThresholds() movement.MotionThresholds {
	th := movement.DefaultMotionThresholds()
	th.Jump = c.GetJumpThreshold()
	th.Run = c.GetRunThreshold()
	th.Shake = c.GetShakeThreshold()
	if c.ShakeDelta != nil {
		th.ShakeDelta = *c.ShakeDelta
	}
	th.ShakeIntervalMs = durationOr(c.ShakeInterval, 500*time.Millisecond).Milliseconds()
	return th
}

// GetDispatchWorkers returns the dispatch_workers value or the default.
func (c *GuardianConfig) GetDispatchWorkers() int {
	if c.DispatchWorkers == nil {
		return 2
	}
	return *c.DispatchWorkers
}

// GetDispatchQueueSize returns the dispatch_queue_size value or the default.
func (c *GuardianConfig) GetDispatchQueueSize() int {
	if c.DispatchQueueSize == nil {
		return 64
	}
	return *c.DispatchQueueSize
}

// GetDispatchTimeout parses and returns the DispatchTimeout as a time.Duration.
func (c *GuardianConfig) GetDispatchTimeout() time.Duration {
	return durationOr(c.DispatchTimeout, 10*time.Second)
}

// GetAlertCooldown parses and returns the AlertCooldown. Zero (the
// default) disables suppression.
func (c *GuardianConfig) GetAlertCooldown() time.Duration {
	return durationOr(c.AlertCooldown, 0)
}

// GetMQTTTopicPrefix returns the mqtt_topic_prefix value or the default.
func (c *GuardianConfig) GetMQTTTopicPrefix() string {
	if c.MQTTTopicPrefix == nil || *c.MQTTTopicPrefix == "" {
		return "guardian"
	}
	return *c.MQTTTopicPrefix
}

// GetMQTTClientID returns the mqtt_client_id value or the default.
func (c *GuardianConfig) GetMQTTClientID() string {
	if c.MQTTClientID == nil || *c.MQTTClientID == "" {
		return "guardian-service"
	}
	return *c.MQTTClientID
}

// GetKafkaTopic returns the kafka_topic value or the default.
func (c *GuardianConfig) GetKafkaTopic() string {
	if c.KafkaTopic == nil || *c.KafkaTopic == "" {
		return "guardian.alerts"
	}
	return *c.KafkaTopic
}

// GetOverpassURL returns the overpass_url value or the default.
func (c *GuardianConfig) GetOverpassURL() string {
	if c.OverpassURL == nil || *c.OverpassURL == "" {
		return "https://overpass-api.de/api/interpreter"
	}
	return *c.OverpassURL
}

// GetOverpassRadiusM returns the overpass_radius_m value or the default.
func (c *GuardianConfig) GetOverpassRadiusM() float64 {
	if c.OverpassRadiusM == nil {
		return 1000
	}
	return *c.OverpassRadiusM
}

// GetOverpassZoneRadiusM returns the overpass_zone_radius_m value or the default.
func (c *GuardianConfig) GetOverpassZoneRadiusM() float64 {
	if c.OverpassZoneRadiusM == nil {
		return 50
	}
	return *c.OverpassZoneRadiusM
}
