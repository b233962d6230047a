package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/db"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/httputil"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

// trackChart renders the subject's recent fixes and the hazard zones as an
// HTML scatter (lon on X, lat on Y).
// Query params:
//   - hours (optional; default 24)
//   - max_points (optional; default 2000)
func (s *Server) trackChart(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	hours, ok := intParam(r, "hours", defaultSummaryHours)
	if !ok {
		httputil.BadRequest(w, "Invalid 'hours' parameter")
		return
	}
	maxPoints, ok := intParam(r, "max_points", 2000)
	if !ok {
		httputil.BadRequest(w, "Invalid 'max_points' parameter")
		return
	}

	since := s.clock.Now().Add(-time.Duration(hours) * time.Hour).UnixMilli()
	fixes, err := s.db.RecentFixes(r.Context(), id, since, maxPoints)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve fixes: %v", err))
		return
	}
	if len(fixes) == 0 {
		httputil.NotFound(w, fmt.Sprintf("no fixes for %q in the last %d hours", id, hours))
		return
	}

	var buf bytes.Buffer
	if err := renderTrack(&buf, id, fixes, s.sessions.Zones()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func renderTrack(buf *bytes.Buffer, subject string, fixes []db.StoredFix, zones []movement.HazardZone) error {
	track := make([]opts.ScatterData, 0, len(fixes))
	for _, f := range fixes {
		track = append(track, opts.ScatterData{
			Name:  time.UnixMilli(f.Sample.CapturedAtMs).UTC().Format(time.RFC3339),
			Value: []interface{}{f.Sample.Longitude, f.Sample.Latitude},
		})
	}
	hazards := make([]opts.ScatterData, 0, len(zones))
	for _, z := range zones {
		hazards = append(hazards, opts.ScatterData{
			Name:  z.Name,
			Value: []interface{}{z.Longitude, z.Latitude},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Guardian track", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Track of " + subject, Subtitle: fmt.Sprintf("fixes=%d zones=%d", len(fixes), len(zones))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", NameLocation: "middle", NameGap: 40, Scale: opts.Bool(true)}),
	)
	scatter.AddSeries("track", track, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	if len(hazards) > 0 {
		scatter.AddSeries("hazard zones", hazards, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	}
	return scatter.Render(buf)
}
