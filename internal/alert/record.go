// Package alert forwards motion, hazard and wandering events to the status
// store and the notification surface without blocking the producers that
// raise them.
package alert

import (
	"fmt"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

// Kind identifies which status field an alert writes.
type Kind string

const (
	KindMotion    Kind = "motion"
	KindHazard    Kind = "hazard"
	KindWandering Kind = "wandering"
)

// Status document field names. Writes are merge-style: only the fields an
// alert kind owns are touched.
const (
	FieldAIAlert    = "aiAlert"
	FieldAIAlertAt  = "aiAlertAt"
	FieldAIDetails  = "aiDetails"
	FieldStoreAlert = "storeAlert"
)

// Record is a single alert on its way to the store. ID and EmittedAtMs are
// filled in by the Dispatcher when left zero.
type Record struct {
	ID          string         `json:"id"`
	SubjectID   string         `json:"subject_id"`
	Kind        Kind           `json:"kind"`
	Message     string         `json:"message"`
	Detail      map[string]any `json:"detail,omitempty"`
	EmittedAtMs int64          `json:"emitted_at_ms"`
}

// Notification is the title/body pair shown to the guardian.
type Notification struct {
	SubjectID   string `json:"subject_id"`
	AlertID     string `json:"alert_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	EmittedAtMs int64  `json:"emitted_at_ms"`
}

// MotionRecord builds the record for a motion label.
func MotionRecord(subjectID string, label movement.MotionLabel) Record {
	return Record{
		SubjectID: subjectID,
		Kind:      KindMotion,
		Message:   label.Message(),
		Detail:    map[string]any{"label": string(label)},
	}
}

// HazardRecord builds the record for one hazard zone hit.
func HazardRecord(subjectID string, h movement.HazardAlert) Record {
	return Record{
		SubjectID: subjectID,
		Kind:      KindHazard,
		Message:   h.Message(),
		Detail: map[string]any{
			"zone":       h.Zone.Name,
			"zone_index": h.Index,
			"distance_m": h.DistanceM,
		},
	}
}

// WanderingRecord builds the record for a wandering assessment.
func WanderingRecord(subjectID string, a movement.AnomalyAssessment) Record {
	return Record{
		SubjectID: subjectID,
		Kind:      KindWandering,
		Message:   string(movement.KindWandering),
		Detail: map[string]any{
			"speed_mps":          a.SpeedMps,
			"angle_deg":          a.BearingChangeDeg,
			"dist_from_center_m": a.DistanceFromReferenceM,
		},
	}
}

// Fields returns the merge-style status update for r.
func (r Record) Fields() map[string]any {
	switch r.Kind {
	case KindMotion:
		return map[string]any{FieldAIAlert: r.Message}
	case KindHazard:
		return map[string]any{FieldStoreAlert: r.Message}
	case KindWandering:
		details := make(map[string]any, 3)
		for _, k := range []string{"speed_mps", "angle_deg", "dist_from_center_m"} {
			if v, ok := r.Detail[k]; ok {
				details[k] = v
			}
		}
		return map[string]any{
			FieldAIAlert:   r.Message,
			FieldAIAlertAt: r.EmittedAtMs,
			FieldAIDetails: details,
		}
	default:
		return nil
	}
}

// Notification returns the guardian-facing notification for r. Only
// wandering alerts raise one; motion and hazard alerts are status-only.
func (r Record) Notification() (Notification, bool) {
	if r.Kind != KindWandering {
		return Notification{}, false
	}
	speed, _ := r.Detail["speed_mps"].(float64)
	dist, _ := r.Detail["dist_from_center_m"].(float64)
	return Notification{
		SubjectID:   r.SubjectID,
		AlertID:     r.ID,
		Title:       "AI Alert: Child may be wandering!",
		Body:        fmt.Sprintf("Speed: %.1fm/s • Dist: %.1fm", speed, dist),
		EmittedAtMs: r.EmittedAtMs,
	}, true
}
