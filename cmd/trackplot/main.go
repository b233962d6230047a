// Command trackplot renders a subject's stored position fixes as a PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/config"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/db"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

var (
	dbPath    = flag.String("db", "guardian.db", "SQLite database path")
	subject   = flag.String("subject", "", "Subject id to plot (required)")
	hours     = flag.Int("hours", 24, "Window of fixes to plot")
	zonesPath = flag.String("zones", "", "Hazard zone file to overlay; built-in zones when empty")
	out       = flag.String("out", "track.png", "Output image (.png, .svg, .pdf)")
	size      = flag.Float64("size", 6, "Image width and height in inches")
)

func main() {
	flag.Parse()
	if *subject == "" {
		log.Fatal("-subject is required")
	}

	zones := config.DefaultZones()
	if *zonesPath != "" {
		var err error
		if zones, err = config.LoadZones(*zonesPath); err != nil {
			log.Fatalf("Failed to load zones: %v", err)
		}
	}

	store, err := db.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	since := time.Now().Add(-time.Duration(*hours) * time.Hour).UnixMilli()
	fixes, err := store.RecentFixes(context.Background(), *subject, since, 0)
	if err != nil {
		log.Fatalf("Failed to read fixes: %v", err)
	}
	if len(fixes) == 0 {
		log.Fatalf("no fixes for %s in the last %d hours", *subject, *hours)
	}

	p, err := plotTrack(*subject, fixes, zones)
	if err != nil {
		log.Fatalf("Failed to build plot: %v", err)
	}
	if err := p.Save(vg.Length(*size)*vg.Inch, vg.Length(*size)*vg.Inch, *out); err != nil {
		log.Fatalf("Failed to save %s: %v", *out, err)
	}
	log.Printf("wrote %d fixes to %s", len(fixes), *out)
}

// plotTrack draws the fixes as a line with points (lon on X, lat on Y) and
// the hazard zones as red markers.
func plotTrack(subject string, fixes []db.StoredFix, zones []movement.HazardZone) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Track of %s (%d fixes)", subject, len(fixes))
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	pts := make(plotter.XYs, 0, len(fixes))
	for _, f := range fixes {
		pts = append(pts, plotter.XY{X: f.Sample.Longitude, Y: f.Sample.Latitude})
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("track: %w", err)
	}
	line.Width = vg.Points(1)
	points.Radius = vg.Points(2)
	p.Add(line, points)
	p.Legend.Add("track", line, points)

	if len(zones) > 0 {
		zpts := make(plotter.XYs, 0, len(zones))
		for _, z := range zones {
			zpts = append(zpts, plotter.XY{X: z.Longitude, Y: z.Latitude})
		}
		hazards, err := plotter.NewScatter(zpts)
		if err != nil {
			return nil, fmt.Errorf("zones: %w", err)
		}
		hazards.Color = color.RGBA{R: 220, A: 255}
		hazards.Radius = vg.Points(4)
		p.Add(hazards)
		p.Legend.Add("hazard zones", hazards)
	}

	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p, nil
}
