package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/db"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/httputil"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/session"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/timeutil"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/units"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes bounds ingest request bodies.
const maxBodyBytes = 64 << 10

type Server struct {
	db       *db.DB
	sessions *session.Manager
	units    string
	clock    timeutil.Clock
}

// NewServer returns a Server reading from store and feeding samples to
// sessions. units is the default speed unit of the summary endpoint.
func NewServer(store *db.DB, sessions *session.Manager, speedUnits string) *Server {
	if !units.IsValid(speedUnits) {
		speedUnits = units.MPS
	}
	return &Server{
		db:       store,
		sessions: sessions,
		units:    speedUnits,
		clock:    timeutil.RealClock{},
	}
}

// SetClock replaces the clock used to stamp samples without a timestamp.
func (s *Server) SetClock(c timeutil.Clock) {
	s.clock = c
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/subjects/{id}/fixes", s.postFix)
	mux.HandleFunc("POST /api/subjects/{id}/motion", s.postMotion)
	mux.HandleFunc("GET /api/subjects/{id}/status", s.getStatus)
	mux.HandleFunc("GET /api/subjects/{id}/alerts", s.listAlerts)
	mux.HandleFunc("GET /api/subjects/{id}/summary", s.getSummary)
	mux.HandleFunc("GET /api/subjects/{id}/track.html", s.trackChart)
	mux.HandleFunc("GET /api/subjects/{id}/inbox", s.listInbox)
	mux.HandleFunc("POST /api/subjects/{id}/inbox/{msg}/read", s.markRead)
	mux.HandleFunc("GET /api/subjects", s.listSubjects)
	mux.HandleFunc("GET /api/zones", s.listZones)
	mux.HandleFunc("GET /healthz", s.healthz)
	return mux
}

// subjectID returns the trimmed {id} path value, writing a 400 when blank.
func subjectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		httputil.BadRequest(w, "missing subject id")
		return "", false
	}
	return id, true
}

// intParam parses an optional positive integer query parameter.
func intParam(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]any{
		"status":   "ok",
		"version":  version.Version,
		"git_sha":  version.GitSHA,
		"subjects": len(s.sessions.Subjects()),
	})
}
