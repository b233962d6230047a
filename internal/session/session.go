// Package session wires one subject's location and motion streams through
// the movement analysis and into the alert dispatcher.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/monitoring"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

// Sink receives alert records. *alert.Dispatcher implements it.
type Sink interface {
	Dispatch(rec alert.Record)
}

// PositionWriter stores the live position document of a subject.
type PositionWriter interface {
	UpdatePosition(ctx context.Context, subjectID string, p movement.PositionSample, battery *int) error
}

// Options are shared by every session of a Manager. Zones must not be
// modified after the first session is created.
type Options struct {
	Sink            Sink
	Positions       PositionWriter
	Zones           []movement.HazardZone
	Analyzer        movement.AnalyzerConfig
	Motion          movement.MotionThresholds
	HistoryCapacity int
}

// Session holds the per-subject pipeline state.
type Session struct {
	subjectID string
	opts      Options
	analyzer  *movement.Analyzer
	history   *movement.HistoryBuffer

	// capacity 1: a pending trigger absorbs further pushes until the
	// analysis goroutine picks it up
	trigger chan struct{}

	shakeMu sync.Mutex
	shake   movement.ShakeState

	lastMu sync.Mutex
	last   movement.AnomalyAssessment
	hasRun bool

	closeOnce sync.Once
	closed    chan struct{}
}

// New returns a session for subjectID. Call Run to start analysis.
func New(subjectID string, opts Options) *Session {
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = movement.DefaultHistoryCapacity
	}
	if opts.Motion == (movement.MotionThresholds{}) {
		opts.Motion = movement.DefaultMotionThresholds()
	}
	return &Session{
		subjectID: strings.TrimSpace(subjectID),
		opts:      opts,
		analyzer:  movement.NewAnalyzer(opts.Analyzer),
		history:   movement.NewHistoryBuffer(opts.HistoryCapacity),
		trigger:   make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
}

// SubjectID returns the subject this session reports for.
func (s *Session) SubjectID() string { return s.subjectID }

// OnLocation records a fix, writes the live position, raises hazard alerts
// and signals the analysis goroutine. It never waits on analysis.
func (s *Session) OnLocation(ctx context.Context, p movement.PositionSample, battery *int) {
	s.history.Push(p)

	if s.opts.Positions != nil && s.subjectID != "" {
		if err := s.opts.Positions.UpdatePosition(ctx, s.subjectID, p, battery); err != nil {
			monitoring.Logf("session %s: position write failed: %v", s.subjectID, err)
		}
	}

	for _, hit := range movement.CheckHazards(p, s.opts.Zones) {
		s.dispatch(alert.HazardRecord(s.subjectID, hit))
	}

	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// OnMotion classifies a sample inline and dispatches any label.
func (s *Session) OnMotion(m movement.MotionSample) movement.MotionLabel {
	s.shakeMu.Lock()
	label, next := movement.ClassifyWith(s.opts.Motion, m, s.shake)
	s.shake = next
	s.shakeMu.Unlock()

	if label != movement.MotionNone {
		s.dispatch(alert.MotionRecord(s.subjectID, label))
	}
	return label
}

// Run performs one analysis per trigger until ctx is done or Close is
// called.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		case <-s.trigger:
			s.analyze()
		}
	}
}

func (s *Session) analyze() {
	a := s.analyzer.Analyze(s.history.Snapshot())
	monitoring.Inc(monitoring.AnalysisRuns)

	s.lastMu.Lock()
	s.last, s.hasRun = a, true
	s.lastMu.Unlock()

	if a.Kind == movement.KindWandering {
		s.dispatch(alert.WanderingRecord(s.subjectID, a))
	}
}

// LastAssessment returns the most recent analysis result.
func (s *Session) LastAssessment() (movement.AnomalyAssessment, bool) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.last, s.hasRun
}

// History returns a snapshot of the retained fixes, newest first.
func (s *Session) History() []movement.PositionSample {
	return s.history.Snapshot()
}

// Close stops Run. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Session) dispatch(rec alert.Record) {
	if s.opts.Sink != nil {
		s.opts.Sink.Dispatch(rec)
	}
}
