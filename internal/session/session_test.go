package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/monitoring"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

func init() {
	monitoring.SetLogger(nil)
}

type sinkRecorder struct {
	mu   sync.Mutex
	recs []alert.Record
}

func (s *sinkRecorder) Dispatch(rec alert.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func (s *sinkRecorder) records() []alert.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alert.Record(nil), s.recs...)
}

func (s *sinkRecorder) ofKind(k alert.Kind) []alert.Record {
	var out []alert.Record
	for _, r := range s.records() {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

type positionRecorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (p *positionRecorder) UpdatePosition(_ context.Context, subject string, _ movement.PositionSample, _ *int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, subject)
	return p.err
}

var escalator = movement.HazardZone{Name: "Escalator A", Latitude: 3.1415, Longitude: 101.6875, RadiusM: 5}

func fix(lat, lon float64, ms int64) movement.PositionSample {
	return movement.PositionSample{Latitude: lat, Longitude: lon, CapturedAtMs: ms}
}

func TestOnLocation_HazardAndPosition(t *testing.T) {
	sink := &sinkRecorder{}
	pos := &positionRecorder{}
	s := New("kid-1", Options{Sink: sink, Positions: pos, Zones: []movement.HazardZone{escalator}})

	battery := 70
	s.OnLocation(context.Background(), fix(3.1415, 101.6875, 1000), &battery)
	s.OnLocation(context.Background(), fix(3.2, 101.7, 2000), nil)

	hazards := sink.ofKind(alert.KindHazard)
	require.Len(t, hazards, 1)
	assert.Equal(t, "kid-1", hazards[0].SubjectID)
	assert.Equal(t, "Child is near dangerous zone #1 (Escalator A)", hazards[0].Message)
	assert.Equal(t, []string{"kid-1", "kid-1"}, pos.calls)
	assert.Len(t, s.History(), 2)
}

func TestOnLocation_PositionFailureIsSwallowed(t *testing.T) {
	pos := &positionRecorder{err: errors.New("disk full")}
	s := New("kid-1", Options{Positions: pos})
	assert.NotPanics(t, func() { s.OnLocation(context.Background(), fix(0, 0, 1), nil) })
}

func TestOnLocation_BlankSubjectSkipsPositionWrite(t *testing.T) {
	pos := &positionRecorder{}
	s := New("  ", Options{Positions: pos})
	s.OnLocation(context.Background(), fix(0, 0, 1), nil)
	assert.Empty(t, pos.calls)
}

func TestOnLocation_NeverBlocksWithoutRun(t *testing.T) {
	s := New("kid-1", Options{})
	done := make(chan struct{})
	go func() {
		for i := int64(0); i < 100; i++ {
			s.OnLocation(context.Background(), fix(0, float64(i)*0.0001, i*1000), nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnLocation blocked with no analysis goroutine running")
	}
	assert.Len(t, s.History(), movement.DefaultHistoryCapacity)
}

func TestOnMotion(t *testing.T) {
	sink := &sinkRecorder{}
	s := New("kid-1", Options{Sink: sink})

	assert.Equal(t, movement.MotionNone, s.OnMotion(movement.MotionSample{Z: 9.8}))
	assert.Equal(t, movement.MotionJumping, s.OnMotion(movement.MotionSample{X: 12, Y: 12, Z: 9}))
	assert.Equal(t, movement.MotionRunning, s.OnMotion(movement.MotionSample{X: 8, Y: 8, Z: 5}))

	motions := sink.ofKind(alert.KindMotion)
	require.Len(t, motions, 2)
	assert.Equal(t, "Child is jumping", motions[0].Message)
	assert.Equal(t, "Child is running", motions[1].Message)
}

func TestOnMotion_ShakeDebounce(t *testing.T) {
	sink := &sinkRecorder{}
	s := New("kid-1", Options{Sink: sink})

	// magnitude ~10.4, first evaluation deltas are the raw axes
	assert.Equal(t, movement.MotionShaking, s.OnMotion(movement.MotionSample{X: 6, Y: 6, Z: 6, ObservedAtMs: 1000}))
	// inside the 500 ms window: no evaluation
	assert.Equal(t, movement.MotionNone, s.OnMotion(movement.MotionSample{X: -6, Y: -6, Z: 6, ObservedAtMs: 1200}))
	// window elapsed and |Δ| = 12+12+0 = 24
	assert.Equal(t, movement.MotionShaking, s.OnMotion(movement.MotionSample{X: -6, Y: -6, Z: 6, ObservedAtMs: 1600}))
	assert.Len(t, sink.ofKind(alert.KindMotion), 2)
}

func TestRun_DetectsWandering(t *testing.T) {
	sink := &sinkRecorder{}
	s := New("kid-1", Options{Sink: sink})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// fast, turning and far from the oldest fix
	s.OnLocation(ctx, fix(0, 0, 0), nil)
	s.OnLocation(ctx, fix(0, 0.001, 1000), nil)
	s.OnLocation(ctx, fix(0.001, 0.001, 2000), nil)

	require.Eventually(t, func() bool {
		return len(sink.ofKind(alert.KindWandering)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	a, ok := s.LastAssessment()
	require.True(t, ok)
	assert.Equal(t, movement.KindWandering, a.Kind)
	assert.Equal(t, 3, a.Score)

	rec := sink.ofKind(alert.KindWandering)[0]
	assert.Equal(t, "wandering", rec.Message)
	assert.Greater(t, rec.Detail["speed_mps"].(float64), 3.0)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestRun_InsufficientDataIsNeutral(t *testing.T) {
	sink := &sinkRecorder{}
	s := New("kid-1", Options{Sink: sink})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.OnLocation(ctx, fix(0, 0, 0), nil)
	s.OnLocation(ctx, fix(0, 0.01, 1000), nil)

	require.Eventually(t, func() bool {
		_, ok := s.LastAssessment()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	a, _ := s.LastAssessment()
	assert.Equal(t, movement.KindNone, a.Kind)
	assert.Empty(t, sink.ofKind(alert.KindWandering))
}

func TestClose_StopsRun(t *testing.T) {
	s := New("kid-1", Options{})
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	s.Close()
	s.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on Close")
	}
}
