package api

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/db"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/httputil"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/units"
)

const defaultSummaryHours = 24

// Summary describes a subject's movement over a window of stored fixes.
// Speeds are segment speeds between consecutive fixes.
type Summary struct {
	SubjectID     string  `json:"subject_id"`
	SinceMs       int64   `json:"since_ms"`
	Fixes         int     `json:"fixes"`
	Segments      int     `json:"segments"`
	Distance      float64 `json:"distance"`
	DistanceUnits string  `json:"distance_units"`
	SpeedUnits    string  `json:"speed_units"`
	MeanSpeed     float64 `json:"mean_speed"`
	StdDevSpeed   float64 `json:"stddev_speed"`
	P50Speed      float64 `json:"p50_speed"`
	P85Speed      float64 `json:"p85_speed"`
	P98Speed      float64 `json:"p98_speed"`
	MaxSpeed      float64 `json:"max_speed"`
}

// summarize computes a Summary in SI units. Segments with a non-positive
// time delta are skipped.
func summarize(fixes []db.StoredFix) Summary {
	sum := Summary{Fixes: len(fixes), DistanceUnits: units.Meters, SpeedUnits: units.MPS}
	speeds := make([]float64, 0, len(fixes))
	for i := 1; i < len(fixes); i++ {
		a, b := fixes[i-1].Sample, fixes[i].Sample
		d := movement.DistanceMeters(a, b)
		sum.Distance += d
		dt := float64(b.CapturedAtMs-a.CapturedAtMs) / 1000
		if dt <= 0 {
			continue
		}
		speeds = append(speeds, d/dt)
	}
	sum.Segments = len(speeds)
	if len(speeds) == 0 {
		return sum
	}

	sort.Float64s(speeds)
	sum.MeanSpeed, sum.StdDevSpeed = stat.MeanStdDev(speeds, nil)
	if math.IsNaN(sum.StdDevSpeed) {
		sum.StdDevSpeed = 0
	}
	sum.P50Speed = stat.Quantile(0.50, stat.Empirical, speeds, nil)
	sum.P85Speed = stat.Quantile(0.85, stat.Empirical, speeds, nil)
	sum.P98Speed = stat.Quantile(0.98, stat.Empirical, speeds, nil)
	sum.MaxSpeed = speeds[len(speeds)-1]
	return sum
}

// convert rewrites speeds and distance into the requested units.
func (sum Summary) convert(speedUnits, distanceUnits string) Summary {
	for _, v := range []*float64{&sum.MeanSpeed, &sum.StdDevSpeed, &sum.P50Speed, &sum.P85Speed, &sum.P98Speed, &sum.MaxSpeed} {
		*v = units.ConvertSpeed(*v, speedUnits)
	}
	sum.Distance = units.ConvertDistance(sum.Distance, distanceUnits)
	sum.SpeedUnits = speedUnits
	sum.DistanceUnits = distanceUnits
	return sum
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	hours, ok := intParam(r, "hours", defaultSummaryHours)
	if !ok {
		httputil.BadRequest(w, "Invalid 'hours' parameter")
		return
	}
	speedUnits := s.units
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			httputil.BadRequest(w, fmt.Sprintf("Invalid 'units' parameter, expected one of %s", units.GetValidUnitsString()))
			return
		}
		speedUnits = u
	}
	distanceUnits := units.Meters
	if u := r.URL.Query().Get("distance_units"); u != "" {
		if !units.IsValidDistance(u) {
			httputil.BadRequest(w, "Invalid 'distance_units' parameter")
			return
		}
		distanceUnits = u
	}

	since := s.clock.Now().Add(-time.Duration(hours) * time.Hour).UnixMilli()
	fixes, err := s.db.RecentFixes(r.Context(), id, since, 0)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve fixes: %v", err))
		return
	}

	sum := summarize(fixes).convert(speedUnits, distanceUnits)
	sum.SubjectID = id
	sum.SinceMs = since
	httputil.WriteJSONOK(w, sum)
}
