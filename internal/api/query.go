package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/db"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/httputil"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

type statusResponse struct {
	SubjectID  string                      `json:"subject_id"`
	Status     *db.SubjectStatus           `json:"status"`
	Position   *db.Position                `json:"position"`
	Assessment *movement.AnomalyAssessment `json:"assessment,omitempty"`
	History    []movement.PositionSample   `json:"history,omitempty"`
}

// getStatus merges the stored status and position documents with the live
// session state. 404 when the subject is unknown everywhere.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	resp := statusResponse{SubjectID: id}

	st, err := s.db.GetStatus(r.Context(), id)
	switch {
	case err == nil:
		resp.Status = st
	case !errors.Is(err, db.ErrNotFound):
		httputil.InternalServerError(w, fmt.Sprintf("Failed to read status: %v", err))
		return
	}

	pos, err := s.db.GetPosition(r.Context(), id)
	switch {
	case err == nil:
		resp.Position = pos
	case !errors.Is(err, db.ErrNotFound):
		httputil.InternalServerError(w, fmt.Sprintf("Failed to read position: %v", err))
		return
	}

	sess, live := s.sessions.Lookup(id)
	if live {
		if a, ok := sess.LastAssessment(); ok {
			resp.Assessment = &a
		}
		resp.History = sess.History()
	}

	if resp.Status == nil && resp.Position == nil && !live {
		httputil.NotFound(w, fmt.Sprintf("unknown subject %q", id))
		return
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	limit, ok := intParam(r, "limit", 100)
	if !ok {
		httputil.BadRequest(w, "Invalid 'limit' parameter")
		return
	}
	kind := alert.Kind(strings.TrimSpace(r.URL.Query().Get("kind")))
	switch kind {
	case "", alert.KindMotion, alert.KindHazard, alert.KindWandering:
	default:
		httputil.BadRequest(w, fmt.Sprintf("Invalid 'kind' parameter %q", kind))
		return
	}

	records, err := s.db.RecentAlerts(r.Context(), id, kind, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve alerts: %v", err))
		return
	}
	if records == nil {
		records = []alert.Record{}
	}
	httputil.WriteJSONOK(w, records)
}

func (s *Server) listInbox(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	limit, ok := intParam(r, "limit", 50)
	if !ok {
		httputil.BadRequest(w, "Invalid 'limit' parameter")
		return
	}
	unread := r.URL.Query().Get("unread") == "true"

	msgs, err := s.db.Inbox(r.Context(), id, unread, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve inbox: %v", err))
		return
	}
	if msgs == nil {
		msgs = []db.InboxMessage{}
	}
	httputil.WriteJSONOK(w, msgs)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	msg := strings.TrimSpace(r.PathValue("msg"))
	if msg == "" {
		httputil.BadRequest(w, "missing message id")
		return
	}
	if err := s.db.MarkRead(r.Context(), id, msg); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("Failed to mark message read: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type subjectEntry struct {
	db.Subject
	Live bool `json:"live"`
}

// listSubjects returns registered subjects plus any subject with a live
// session that is not registered.
func (s *Server) listSubjects(w http.ResponseWriter, r *http.Request) {
	registered, err := s.db.ListSubjects(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list subjects: %v", err))
		return
	}
	live := make(map[string]bool)
	for _, id := range s.sessions.Subjects() {
		live[id] = true
	}

	out := make([]subjectEntry, 0, len(registered)+len(live))
	for _, sub := range registered {
		out = append(out, subjectEntry{Subject: sub, Live: live[sub.ID]})
		delete(live, sub.ID)
	}
	for _, id := range s.sessions.Subjects() {
		if live[id] {
			out = append(out, subjectEntry{Subject: db.Subject{ID: id}, Live: true})
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	zones := s.sessions.Zones()
	if zones == nil {
		zones = []movement.HazardZone{}
	}
	httputil.WriteJSONOK(w, zones)
}
