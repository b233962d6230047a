package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/db"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/monitoring"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/session"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/testutil"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/timeutil"
)

var testEpoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func init() {
	monitoring.SetLogger(nil)
	log.SetOutput(io.Discard)
}

type sinkRecorder struct {
	mu      sync.Mutex
	records []alert.Record
}

func (s *sinkRecorder) Dispatch(rec alert.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *sinkRecorder) kinds() []alert.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []alert.Kind
	for _, r := range s.records {
		out = append(out, r.Kind)
	}
	return out
}

type fixture struct {
	srv   *Server
	mux   http.Handler
	db    *db.DB
	sink  *sinkRecorder
	clock *timeutil.MockClock
}

var testZones = []movement.HazardZone{
	{Name: "Escalator A", Latitude: 3.1415, Longitude: 101.6875, RadiusM: 5},
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "guardian.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := timeutil.NewMockClock(testEpoch)
	store.SetClock(clock)

	sink := &sinkRecorder{}
	mgr := session.NewManager(context.Background(), session.Options{
		Sink:      sink,
		Positions: store,
		Zones:     testZones,
	})
	t.Cleanup(mgr.Close)

	srv := NewServer(store, mgr, "mps")
	srv.SetClock(clock)
	return &fixture{srv: srv, mux: srv.ServeMux(), db: store, sink: sink, clock: clock}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.Serve(f.mux, testutil.NewJSONRequest(t, method, path, body))
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var out map[string]any
	testutil.DecodeJSON(t, rec, &out)
	assert.Equal(t, "ok", out["status"])
	assert.EqualValues(t, 0, out["subjects"])
}

func TestPostFix(t *testing.T) {
	f := newFixture(t)
	ts := testEpoch.UnixMilli()

	rec := f.do(t, http.MethodPost, "/api/subjects/kid-1/fixes",
		map[string]any{"lat": 3.1415, "lon": 101.6875, "accuracy": 4, "battery": 80, "ts": ts})
	testutil.AssertStatusCode(t, rec.Code, http.StatusAccepted)

	var out struct {
		SubjectID string `json:"subject_id"`
		Hazards   int    `json:"hazards"`
	}
	testutil.DecodeJSON(t, rec, &out)
	assert.Equal(t, "kid-1", out.SubjectID)
	assert.Equal(t, 1, out.Hazards)

	pos, err := f.db.GetPosition(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 3.1415, pos.Lat)
	require.NotNil(t, pos.Battery)
	assert.Equal(t, 80, *pos.Battery)

	assert.Contains(t, f.sink.kinds(), alert.KindHazard)
}

func TestPostFix_PathSubjectWins(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/subjects/kid-2/fixes",
		map[string]any{"subject": "someone-else", "lat": 1, "lon": 2})
	testutil.AssertStatusCode(t, rec.Code, http.StatusAccepted)

	_, err := f.db.GetPosition(context.Background(), "kid-2")
	assert.NoError(t, err)
	_, err = f.db.GetPosition(context.Background(), "someone-else")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestPostFix_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing lon", map[string]any{"lat": 1}},
		{"latitude out of range", map[string]any{"lat": 91, "lon": 0}},
		{"battery out of range", map[string]any{"lat": 1, "lon": 1, "battery": 101}},
		{"malformed", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/api/subjects/kid-1/fixes", tt.body)
			testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
		})
	}
}

func TestPostFix_BlankSubject(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/subjects/%20/fixes", map[string]any{"lat": 1, "lon": 1})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestPostMotion(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/subjects/kid-1/motion",
		map[string]any{"x": 0, "y": 0, "z": 25, "ts": testEpoch.UnixMilli()})
	testutil.AssertStatusCode(t, rec.Code, http.StatusAccepted)

	var out struct {
		Label   string `json:"label"`
		Message string `json:"message"`
	}
	testutil.DecodeJSON(t, rec, &out)
	assert.Equal(t, "jumping", out.Label)
	assert.Equal(t, "Child is jumping", out.Message)
	assert.Equal(t, []alert.Kind{alert.KindMotion}, f.sink.kinds())

	rec = f.do(t, http.MethodPost, "/api/subjects/kid-1/motion", map[string]any{"x": 0, "y": 0})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.do(t, http.MethodGet, "/api/subjects/ghost/status", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	require.NoError(t, f.db.MergeStatus(ctx, "kid-1", map[string]any{alert.FieldAIAlert: "Child is running"}))
	rec = f.do(t, http.MethodGet, "/api/subjects/kid-1/status", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var out statusResponse
	testutil.DecodeJSON(t, rec, &out)
	require.NotNil(t, out.Status)
	require.NotNil(t, out.Status.AIAlert)
	assert.Equal(t, "Child is running", *out.Status.AIAlert)
	assert.Nil(t, out.Position)

	f.do(t, http.MethodPost, "/api/subjects/kid-1/fixes", map[string]any{"lat": 1, "lon": 1})
	rec = f.do(t, http.MethodGet, "/api/subjects/kid-1/status", nil)
	out = statusResponse{}
	testutil.DecodeJSON(t, rec, &out)
	require.NotNil(t, out.Position)
	assert.Equal(t, "online", out.Position.Status)
	assert.Len(t, out.History, 1)
}

func TestListAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, kind := range []alert.Kind{alert.KindMotion, alert.KindHazard, alert.KindMotion} {
		require.NoError(t, f.db.AppendAlert(ctx, alert.Record{
			ID:          fmt.Sprintf("a-%d", i),
			SubjectID:   "kid-1",
			Kind:        kind,
			Message:     "m",
			EmittedAtMs: testEpoch.UnixMilli() + int64(i),
		}))
	}

	tests := []struct {
		query  string
		status int
		ids    []string
	}{
		{"", http.StatusOK, []string{"a-2", "a-1", "a-0"}},
		{"?kind=motion", http.StatusOK, []string{"a-2", "a-0"}},
		{"?limit=1", http.StatusOK, []string{"a-2"}},
		{"?limit=0", http.StatusBadRequest, nil},
		{"?kind=teleport", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/subjects/kid-1/alerts"+tt.query, nil)
			testutil.AssertStatusCode(t, rec.Code, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			var records []alert.Record
			testutil.DecodeJSON(t, rec, &records)
			var ids []string
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}

	rec := f.do(t, http.MethodGet, "/api/subjects/nobody/alerts", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestInboxAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Notify(ctx, alert.Notification{
		SubjectID: "kid-1", AlertID: "n-1", Title: "Wandering", Body: "Child may be wandering", EmittedAtMs: 1,
	}))

	rec := f.do(t, http.MethodGet, "/api/subjects/kid-1/inbox?unread=true", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var msgs []db.InboxMessage
	testutil.DecodeJSON(t, rec, &msgs)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsRead)

	rec = f.do(t, http.MethodPost, "/api/subjects/kid-1/inbox/n-1/read", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNoContent)

	rec = f.do(t, http.MethodGet, "/api/subjects/kid-1/inbox?unread=true", nil)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/subjects/kid-1/inbox/missing/read", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestListSubjectsAndZones(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.UpsertSubject(context.Background(), db.Subject{ID: "kid-1", DisplayName: "Aina"}))
	f.do(t, http.MethodPost, "/api/subjects/kid-2/fixes", map[string]any{"lat": 1, "lon": 1})

	rec := f.do(t, http.MethodGet, "/api/subjects", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var subjects []subjectEntry
	testutil.DecodeJSON(t, rec, &subjects)
	require.Len(t, subjects, 2)
	assert.Equal(t, "kid-1", subjects[0].ID)
	assert.False(t, subjects[0].Live)
	assert.Equal(t, "kid-2", subjects[1].ID)
	assert.True(t, subjects[1].Live)

	rec = f.do(t, http.MethodGet, "/api/zones", nil)
	var zones []movement.HazardZone
	testutil.DecodeJSON(t, rec, &zones)
	assert.Equal(t, testZones, zones)
}

func TestSummaryEndpoint(t *testing.T) {
	f := newFixture(t)
	base := testEpoch.UnixMilli()
	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, "/api/subjects/kid-1/fixes", map[string]any{
			"lat": 3.1 + float64(i)*0.0001, "lon": 101.6, "ts": base + int64(i)*10_000,
		})
		testutil.AssertStatusCode(t, rec.Code, http.StatusAccepted)
	}
	f.clock.Advance(time.Minute)

	rec := f.do(t, http.MethodGet, "/api/subjects/kid-1/summary?units=kmph&distance_units=km", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var sum Summary
	testutil.DecodeJSON(t, rec, &sum)
	assert.Equal(t, 3, sum.Fixes)
	assert.Equal(t, 2, sum.Segments)
	assert.Equal(t, "kmph", sum.SpeedUnits)
	assert.InDelta(t, 0.0222, sum.Distance, 0.001)
	assert.InDelta(t, 4.0, sum.MeanSpeed, 0.05)

	for _, q := range []string{"?units=furlongs", "?distance_units=yd", "?hours=-1"} {
		rec := f.do(t, http.MethodGet, "/api/subjects/kid-1/summary"+q, nil)
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}
}

func TestTrackChart(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/subjects/kid-1/track.html", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	f.do(t, http.MethodPost, "/api/subjects/kid-1/fixes", map[string]any{"lat": 3.1415, "lon": 101.6875, "ts": testEpoch.UnixMilli()})
	rec = f.do(t, http.MethodGet, "/api/subjects/kid-1/track.html", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "Track of kid-1"))
	assert.Contains(t, body, "Escalator A")
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/subjects/kid-1/fixes", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := testutil.Serve(h, testutil.NewJSONRequest(t, http.MethodGet, "/x", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Contains(t, statusCodeColor(200), colorBoldGreen)
	assert.Contains(t, statusCodeColor(302), colorYellow)
	assert.Contains(t, statusCodeColor(404), colorBoldRed)
	assert.Contains(t, statusCodeColor(503), colorBoldRed)
	assert.Equal(t, "100", statusCodeColor(100))
}
