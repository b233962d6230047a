package movement

import "math"

// MotionThresholds are the magnitude cut-offs (m/s²) used by Classify.
type MotionThresholds struct {
	Jump            float64
	Run             float64
	Shake           float64
	ShakeDelta      float64 // sum of absolute per-axis deltas
	ShakeIntervalMs int64   // minimum gap between shake evaluations
}

// DefaultMotionThresholds returns the stock thresholds.
func DefaultMotionThresholds() MotionThresholds {
	return MotionThresholds{
		Jump:            18.0,
		Run:             12.0,
		Shake:           8.0,
		ShakeDelta:      12.0,
		ShakeIntervalMs: 500,
	}
}

// ShakeState is the debounce memory for shake detection. It is owned by the
// sensor session and threaded through Classify; the zero value means no
// shake evaluation has happened yet.
type ShakeState struct {
	X, Y, Z    float32
	LastEvalMs int64
	Primed     bool
}

// Classify maps one accelerometer sample to a motion label using the default
// thresholds. See ClassifyWith.
func Classify(s MotionSample, st ShakeState) (MotionLabel, ShakeState) {
	return ClassifyWith(DefaultMotionThresholds(), s, st)
}

// ClassifyWith maps one accelerometer sample to a motion label. Thresholds
// are checked high to low and the first match wins. Shake candidates are
// debounced: the state is only updated when a shake evaluation actually
// runs, and a label is only emitted when the axes moved enough since the
// previous evaluation.
func ClassifyWith(th MotionThresholds, s MotionSample, st ShakeState) (MotionLabel, ShakeState) {
	x, y, z := float64(s.X), float64(s.Y), float64(s.Z)
	magnitude := math.Sqrt(x*x + y*y + z*z)

	switch {
	case magnitude > th.Jump:
		return MotionJumping, st
	case magnitude > th.Run:
		return MotionRunning, st
	case magnitude <= th.Shake:
		return MotionNone, st
	}

	// An unprimed state behaves as if the last evaluation was infinitely
	// long ago, with zero stored axes.
	if st.Primed && s.ObservedAtMs-st.LastEvalMs < th.ShakeIntervalMs {
		return MotionNone, st
	}

	delta := math.Abs(x-float64(st.X)) + math.Abs(y-float64(st.Y)) + math.Abs(z-float64(st.Z))
	next := ShakeState{X: s.X, Y: s.Y, Z: s.Z, LastEvalMs: s.ObservedAtMs, Primed: true}
	if delta > th.ShakeDelta {
		return MotionShaking, next
	}
	return MotionNone, next
}
