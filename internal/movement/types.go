// Package movement turns raw location fixes and accelerometer samples into
// motion labels, hazard proximity hits and a trajectory anomaly score.
//
// Everything here is pure computation apart from HistoryBuffer, which is the
// one structure shared between the location producer and the analysis
// goroutine. Side effects (status writes, notifications) live in package
// alert.
package movement

import "fmt"

// PositionSample is a single location fix. It is immutable once created.
type PositionSample struct {
	Latitude            float64 `json:"lat"`
	Longitude           float64 `json:"lon"`
	CapturedAtMs        int64   `json:"captured_at_ms"`
	HorizontalAccuracyM float32 `json:"accuracy_m"`
}

func (p PositionSample) String() string {
	return fmt.Sprintf("(%.6f, %.6f ±%.0fm @%d)", p.Latitude, p.Longitude, p.HorizontalAccuracyM, p.CapturedAtMs)
}

// MotionSample is a raw tri-axial acceleration reading in m/s², gravity
// included.
type MotionSample struct {
	X            float32 `json:"x"`
	Y            float32 `json:"y"`
	Z            float32 `json:"z"`
	ObservedAtMs int64   `json:"observed_at_ms"`
}

// HazardZone is a named circular area that triggers a proximity alert.
type HazardZone struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lon" yaml:"lon"`
	RadiusM   float32 `json:"radius_m" yaml:"radius_m"`
}

// AnomalyKind classifies a trajectory assessment.
type AnomalyKind string

const (
	KindNone      AnomalyKind = "none"
	KindWandering AnomalyKind = "wandering"
)

// AnomalyAssessment is the output of Analyzer.Analyze.
type AnomalyAssessment struct {
	SpeedMps               float64     `json:"speed_mps"`
	BearingChangeDeg       float64     `json:"bearing_change_deg"`
	DistanceFromReferenceM float64     `json:"distance_from_reference_m"`
	Score                  int         `json:"score"`
	Kind                   AnomalyKind `json:"kind"`
}

// MotionLabel is the discrete output of Classify. The zero value means no
// label was produced.
type MotionLabel string

const (
	MotionNone    MotionLabel = ""
	MotionJumping MotionLabel = "jumping"
	MotionRunning MotionLabel = "running"
	MotionShaking MotionLabel = "shaking"
)

// Message is the human-readable status text written for a motion label.
func (l MotionLabel) Message() string {
	if l == MotionNone {
		return ""
	}
	return "Child is " + string(l)
}
