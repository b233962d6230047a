package session

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

// Manager owns one Session per subject, created on first use. It
// implements ingest.Handler.
type Manager struct {
	opts Options
	ctx  context.Context

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

// NewManager returns a Manager whose sessions analyse until ctx is done or
// Close is called.
func NewManager(ctx context.Context, opts Options) *Manager {
	return &Manager{
		opts:     opts,
		ctx:      ctx,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for subjectID, starting it if needed.
// Surrounding whitespace in the id is ignored. It returns nil after Close.
func (m *Manager) Session(subjectID string) *Session {
	subjectID = strings.TrimSpace(subjectID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if s, ok := m.sessions[subjectID]; ok {
		return s
	}
	s := New(subjectID, m.opts)
	m.sessions[subjectID] = s
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s.Run(m.ctx)
	}()
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(subjectID string) (*Session, bool) {
	subjectID = strings.TrimSpace(subjectID)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[subjectID]
	return s, ok
}

// Subjects returns the ids with a live session, sorted.
func (m *Manager) Subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Zones returns the hazard zones shared by every session.
func (m *Manager) Zones() []movement.HazardZone {
	return m.opts.Zones
}

func (m *Manager) HandleFix(ctx context.Context, subjectID string, p movement.PositionSample, battery *int) error {
	if s := m.Session(subjectID); s != nil {
		s.OnLocation(ctx, p, battery)
	}
	return nil
}

func (m *Manager) HandleMotion(_ context.Context, subjectID string, sample movement.MotionSample) error {
	if s := m.Session(subjectID); s != nil {
		s.OnMotion(sample)
	}
	return nil
}

// Close stops every session and waits for their analysis goroutines.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for _, s := range m.sessions {
		s.Close()
	}
	m.mu.Unlock()
	m.wg.Wait()
}
