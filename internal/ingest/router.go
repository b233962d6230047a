package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/identity"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/monitoring"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/timeutil"
)

// Handler receives parsed samples. A blank subject id is passed through;
// the pipeline still analyses but dispatch is skipped.
type Handler interface {
	HandleFix(ctx context.Context, subjectID string, p movement.PositionSample, battery *int) error
	HandleMotion(ctx context.Context, subjectID string, s movement.MotionSample) error
}

// Router parses lines and forwards them to Handler. Payloads that name no
// subject are attributed to Subject.
type Router struct {
	Handler Handler
	Subject identity.Provider
	Clock   timeutil.Clock

	mu     sync.Mutex
	device map[string]any
}

// NewRouter returns a Router with a real clock.
func NewRouter(h Handler, subject identity.Provider) *Router {
	return &Router{Handler: h, Subject: subject, Clock: timeutil.RealClock{}}
}

// HandleLine parses and routes one device line. Device status lines are
// merged into DeviceState.
func (r *Router) HandleLine(ctx context.Context, line string) error {
	ev, err := ParsePayload(line, r.nowMs())
	if errors.Is(err, ErrUnknownPayload) && ev.Type == PayloadStatus {
		return r.mergeDeviceState(line)
	}
	if err != nil {
		monitoring.Inc(monitoring.IngestRejected)
		return err
	}
	return r.Route(ctx, ev)
}

// Route forwards a parsed event.
func (r *Router) Route(ctx context.Context, ev Event) error {
	subject := ev.SubjectID
	if subject == "" {
		subject = identity.Resolve(ctx, r.Subject)
	}
	switch {
	case ev.Fix != nil:
		return r.Handler.HandleFix(ctx, subject, *ev.Fix, ev.Battery)
	case ev.Motion != nil:
		return r.Handler.HandleMotion(ctx, subject, *ev.Motion)
	}
	return fmt.Errorf("%w: empty event", ErrUnknownPayload)
}

func (r *Router) nowMs() int64 {
	if r.Clock == nil {
		return timeutil.UnixMilli(timeutil.RealClock{})
	}
	return timeutil.UnixMilli(r.Clock)
}

func (r *Router) mergeDeviceState(line string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(line), &values); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device == nil {
		r.device = make(map[string]any)
	}
	for k, v := range values {
		r.device[k] = v
	}
	monitoring.Logf("Device status line: %s", line)
	return nil
}

// DeviceState returns a copy of the latest status values reported by the
// device.
func (r *Router) DeviceState() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.device))
	for k, v := range r.device {
		out[k] = v
	}
	return out
}
