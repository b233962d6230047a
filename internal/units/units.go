// Package units converts the SI speeds and distances stored by guardian
// into the units a caller asks for.
package units

import "strings"

// Speed units.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// Distance units.
const (
	Meters     = "m"
	Kilometers = "km"
	Feet       = "ft"
	Miles      = "mi"
)

var (
	ValidSpeedUnits    = []string{MPS, MPH, KMPH, KPH}
	ValidDistanceUnits = []string{Meters, Kilometers, Feet, Miles}
)

// IsValid reports whether unit is a known speed unit.
func IsValid(unit string) bool {
	return contains(ValidSpeedUnits, unit)
}

// IsValidDistance reports whether unit is a known distance unit.
func IsValidDistance(unit string) bool {
	return contains(ValidDistanceUnits, unit)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns the speed units for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidSpeedUnits, ", ")
}

// ConvertSpeed converts m/s to targetUnits. Unknown units return m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.23694
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// ConvertDistance converts meters to targetUnits. Unknown units return
// meters.
func ConvertDistance(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case Kilometers:
		return meters / 1000
	case Feet:
		return meters * 3.28084
	case Miles:
		return meters / 1609.344
	default:
		return meters
	}
}
