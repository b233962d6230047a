package notify

import (
	"context"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/monitoring"
)

// LogNotifier writes notifications to the monitoring log. It is the fallback
// surface when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n alert.Notification) error {
	monitoring.Logf("notify[%s]: %s: %s", n.SubjectID, n.Title, n.Body)
	return nil
}
