package movement

import "fmt"

// HazardAlert is one zone whose radius contains a fix.
type HazardAlert struct {
	Zone      HazardZone `json:"zone"`
	Index     int        `json:"index"`
	DistanceM float64    `json:"distance_m"`
}

// Message is the status text written to the store for this alert. Zones
// are numbered from one.
func (h HazardAlert) Message() string {
	if h.Zone.Name == "" {
		return fmt.Sprintf("Child is near dangerous zone #%d", h.Index+1)
	}
	return fmt.Sprintf("Child is near dangerous zone #%d (%s)", h.Index+1, h.Zone.Name)
}

// CheckHazards reports every zone whose centre lies within its radius of p,
// in zone order. It never short-circuits on the first match.
func CheckHazards(p PositionSample, zones []HazardZone) []HazardAlert {
	var alerts []HazardAlert
	for i, z := range zones {
		centre := PositionSample{Latitude: z.Latitude, Longitude: z.Longitude}
		d := DistanceMeters(p, centre)
		if d <= float64(z.RadiusM) {
			alerts = append(alerts, HazardAlert{Zone: z, Index: i, DistanceM: d})
		}
	}
	return alerts
}
