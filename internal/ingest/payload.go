// Package ingest turns raw device lines and broker messages into position
// fixes and motion samples and hands them to a Handler.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

const (
	PayloadFix     = "fix"
	PayloadMotion  = "motion"
	PayloadStatus  = "status"
	PayloadUnknown = "unknown"
)

// ErrUnknownPayload is returned for lines that are neither a fix nor a
// motion sample.
var ErrUnknownPayload = errors.New("unknown payload")

// Event is one parsed payload. Exactly one of Fix and Motion is set.
type Event struct {
	Type      string
	SubjectID string
	Fix       *movement.PositionSample
	Battery   *int
	Motion    *movement.MotionSample
}

type rawPayload struct {
	Type     string   `json:"type"`
	Subject  string   `json:"subject"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Accuracy float32  `json:"accuracy"`
	Battery  *int     `json:"battery"`
	X        *float32 `json:"x"`
	Y        *float32 `json:"y"`
	Z        *float32 `json:"z"`
	TsMs     int64    `json:"ts"`
}

// ClassifyPayload returns the payload type of a line without fully parsing
// it. JSON lines carry a "type" or are recognised by their keys; compact
// lines start with F (fix) or A (acceleration).
func ClassifyPayload(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "{"):
		var probe map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			return PayloadUnknown
		}
		if t, ok := probe["type"]; ok {
			var s string
			if json.Unmarshal(t, &s) == nil && (s == PayloadFix || s == PayloadMotion) {
				return s
			}
		}
		if _, ok := probe["lat"]; ok {
			return PayloadFix
		}
		if _, ok := probe["x"]; ok {
			return PayloadMotion
		}
		return PayloadStatus
	case strings.HasPrefix(line, "F,"):
		return PayloadFix
	case strings.HasPrefix(line, "A,"):
		return PayloadMotion
	}
	return PayloadUnknown
}

// ParsePayload parses a line. nowMs stamps samples that carry no timestamp.
func ParsePayload(line string, nowMs int64) (Event, error) {
	line = strings.TrimSpace(line)
	kind := ClassifyPayload(line)
	if kind != PayloadFix && kind != PayloadMotion {
		return Event{Type: kind}, fmt.Errorf("%w: %q", ErrUnknownPayload, truncate(line))
	}

	var raw rawPayload
	if strings.HasPrefix(line, "{") {
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return Event{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
		}
	} else if err := parseCompact(line, &raw); err != nil {
		return Event{}, err
	}
	raw.Type = kind
	return raw.event(nowMs)
}

// ParseTyped parses a JSON body whose type is known from context (topic or
// route) rather than from the payload.
func ParseTyped(kind string, body []byte, nowMs int64) (Event, error) {
	if kind != PayloadFix && kind != PayloadMotion {
		return Event{}, fmt.Errorf("%w: type %q", ErrUnknownPayload, kind)
	}
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	raw.Type = kind
	return raw.event(nowMs)
}

func (r rawPayload) event(nowMs int64) (Event, error) {
	ts := r.TsMs
	if ts <= 0 {
		ts = nowMs
	}
	ev := Event{Type: r.Type, SubjectID: strings.TrimSpace(r.Subject)}

	switch r.Type {
	case PayloadFix:
		if r.Lat == nil || r.Lon == nil {
			return Event{}, errors.New("fix requires lat and lon")
		}
		if err := validateCoordinates(*r.Lat, *r.Lon); err != nil {
			return Event{}, err
		}
		if !finite(float64(r.Accuracy)) || r.Accuracy < 0 {
			return Event{}, fmt.Errorf("invalid accuracy %v", r.Accuracy)
		}
		if r.Battery != nil && (*r.Battery < 0 || *r.Battery > 100) {
			return Event{}, fmt.Errorf("invalid battery level %d", *r.Battery)
		}
		ev.Fix = &movement.PositionSample{
			Latitude:            *r.Lat,
			Longitude:           *r.Lon,
			CapturedAtMs:        ts,
			HorizontalAccuracyM: r.Accuracy,
		}
		ev.Battery = r.Battery
	case PayloadMotion:
		if r.X == nil || r.Y == nil || r.Z == nil {
			return Event{}, errors.New("motion requires x, y and z")
		}
		if !finite(float64(*r.X)) || !finite(float64(*r.Y)) || !finite(float64(*r.Z)) {
			return Event{}, fmt.Errorf("invalid motion sample (%v, %v, %v)", *r.X, *r.Y, *r.Z)
		}
		ev.Motion = &movement.MotionSample{X: *r.X, Y: *r.Y, Z: *r.Z, ObservedAtMs: ts}
	}
	return ev, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateCoordinates(lat, lon float64) error {
	if !finite(lat) || !finite(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("invalid coordinates (%v, %v)", lat, lon)
	}
	return nil
}

// parseCompact reads "F,lat,lon[,accuracy[,ts]]" and "A,x,y,z[,ts]".
func parseCompact(line string, raw *rawPayload) error {
	segments := strings.Split(line, ",")
	floats := make([]float64, 0, len(segments)-1)
	for _, s := range segments[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid payload format: %s: %w", truncate(line), err)
		}
		if !finite(v) {
			return fmt.Errorf("invalid payload format: %s: non-finite value %q", truncate(line), s)
		}
		floats = append(floats, v)
	}

	switch segments[0] {
	case "F":
		if len(floats) < 2 || len(floats) > 4 {
			return fmt.Errorf("invalid payload format: %s, expected 2 to 4 values", truncate(line))
		}
		raw.Lat, raw.Lon = &floats[0], &floats[1]
		if len(floats) > 2 {
			raw.Accuracy = float32(floats[2])
		}
		if len(floats) > 3 {
			raw.TsMs = int64(floats[3])
		}
	case "A":
		if len(floats) < 3 || len(floats) > 4 {
			return fmt.Errorf("invalid payload format: %s, expected 3 or 4 values", truncate(line))
		}
		x, y, z := float32(floats[0]), float32(floats[1]), float32(floats[2])
		raw.X, raw.Y, raw.Z = &x, &y, &z
		if len(floats) > 3 {
			raw.TsMs = int64(floats[3])
		}
	}
	return nil
}

func truncate(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
