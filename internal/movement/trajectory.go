package movement

// BearingMode selects how heading change between consecutive legs is
// computed.
type BearingMode string

const (
	BearingPlanar   BearingMode = "planar"
	BearingGeodesic BearingMode = "geodesic"
)

// AnchorMode selects the reference point for dispersion.
type AnchorMode string

const (
	// AnchorRolling uses the oldest retained fix, making the detector a
	// short-horizon one rather than a geofence around home.
	AnchorRolling AnchorMode = "rolling"
	// AnchorFixed uses AnalyzerConfig.Home.
	AnchorFixed AnchorMode = "fixed"
)

// AnalyzerConfig tunes the wandering heuristic.
type AnalyzerConfig struct {
	MinSamples           int
	SpeedThresholdMps    float64
	BearingThresholdDeg  float64
	DispersionThresholdM float64
	WanderingScore       int
	BearingMode          BearingMode
	Anchor               AnchorMode
	Home                 PositionSample
}

// DefaultAnalyzerConfig returns the stock thresholds: 3 m/s, 45°, 50 m, two
// of three to flag wandering.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MinSamples:           3,
		SpeedThresholdMps:    3.0,
		BearingThresholdDeg:  45.0,
		DispersionThresholdM: 50.0,
		WanderingScore:       2,
		BearingMode:          BearingPlanar,
		Anchor:               AnchorRolling,
	}
}

// Analyzer scores a fix history for wandering. It holds only configuration
// and is safe for concurrent use.
type Analyzer struct {
	cfg AnalyzerConfig
}

// NewAnalyzer returns an Analyzer; zero-valued fields in cfg fall back to
// the defaults.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	def := DefaultAnalyzerConfig()
	if cfg.MinSamples < 3 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.SpeedThresholdMps <= 0 {
		cfg.SpeedThresholdMps = def.SpeedThresholdMps
	}
	if cfg.BearingThresholdDeg <= 0 {
		cfg.BearingThresholdDeg = def.BearingThresholdDeg
	}
	if cfg.DispersionThresholdM <= 0 {
		cfg.DispersionThresholdM = def.DispersionThresholdM
	}
	if cfg.WanderingScore <= 0 {
		cfg.WanderingScore = def.WanderingScore
	}
	if cfg.BearingMode == "" {
		cfg.BearingMode = def.BearingMode
	}
	if cfg.Anchor == "" {
		cfg.Anchor = def.Anchor
	}
	return &Analyzer{cfg: cfg}
}

// Config returns the effective configuration.
func (a *Analyzer) Config() AnalyzerConfig {
	return a.cfg
}

// Analyze scores history (most recent first). Fewer than MinSamples fixes is
// not an error: the result is a neutral assessment. The input is not
// modified.
func (a *Analyzer) Analyze(history []PositionSample) AnomalyAssessment {
	if len(history) < a.cfg.MinSamples {
		return AnomalyAssessment{Kind: KindNone}
	}

	newest, prev, older := history[0], history[1], history[2]

	distance := DistanceMeters(prev, newest)
	dt := float64(newest.CapturedAtMs-prev.CapturedAtMs) / 1000.0
	if dt < 1.0 {
		dt = 1.0
	}
	speed := distance / dt

	bearing := planarBearingDeg
	if a.cfg.BearingMode == BearingGeodesic {
		bearing = geodesicBearingDeg
	}
	change := angleDelta(bearing(older, prev), bearing(prev, newest))

	reference := history[len(history)-1]
	if a.cfg.Anchor == AnchorFixed {
		reference = a.cfg.Home
	}
	dispersion := DistanceMeters(reference, newest)

	score := 0
	if speed > a.cfg.SpeedThresholdMps {
		score++
	}
	if change > a.cfg.BearingThresholdDeg {
		score++
	}
	if dispersion > a.cfg.DispersionThresholdM {
		score++
	}

	kind := KindNone
	if score >= a.cfg.WanderingScore {
		kind = KindWandering
	}

	return AnomalyAssessment{
		SpeedMps:               speed,
		BearingChangeDeg:       change,
		DistanceFromReferenceM: dispersion,
		Score:                  score,
		Kind:                   kind,
	}
}
