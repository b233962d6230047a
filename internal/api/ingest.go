package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/httputil"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/ingest"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/monitoring"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/timeutil"
)

// parseBody decodes a fix or motion body. The path subject overrides any
// subject in the body.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request, kind string) (ingest.Event, bool) {
	id, ok := subjectID(w, r)
	if !ok {
		return ingest.Event{}, false
	}
	var body json.RawMessage
	if !httputil.DecodeJSONBody(w, r, &body, maxBodyBytes) {
		monitoring.Inc(monitoring.IngestRejected)
		return ingest.Event{}, false
	}
	ev, err := ingest.ParseTyped(kind, body, timeutil.UnixMilli(s.clock))
	if err != nil {
		monitoring.Inc(monitoring.IngestRejected)
		httputil.BadRequest(w, fmt.Sprintf("invalid %s: %v", kind, err))
		return ingest.Event{}, false
	}
	ev.SubjectID = id
	return ev, true
}

func (s *Server) postFix(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.parseBody(w, r, ingest.PayloadFix)
	if !ok {
		return
	}
	if err := s.sessions.HandleFix(r.Context(), ev.SubjectID, *ev.Fix, ev.Battery); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to handle fix: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"subject_id": ev.SubjectID,
		"fix":        ev.Fix,
		"hazards":    len(movement.CheckHazards(*ev.Fix, s.sessions.Zones())),
	})
}

func (s *Server) postMotion(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.parseBody(w, r, ingest.PayloadMotion)
	if !ok {
		return
	}
	sess := s.sessions.Session(ev.SubjectID)
	if sess == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	label := sess.OnMotion(*ev.Motion)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"subject_id": ev.SubjectID,
		"label":      string(label),
		"message":    label.Message(),
	})
}
