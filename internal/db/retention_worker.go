package db

import (
	"context"
	"log"
	"time"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/timeutil"
)

// RetentionWorker periodically prunes old fixes and alerts and flips live
// positions that have stopped updating to "offline".
type RetentionWorker struct {
	DB           *DB
	Interval     time.Duration // how often to run (e.g., 15m)
	FixMaxAge    time.Duration // fixes older than this are deleted
	AlertMaxAge  time.Duration // alerts older than this are deleted
	OfflineAfter time.Duration // positions silent for this long go offline
	Clock        timeutil.Clock
	StopChan     chan struct{}
}

func NewRetentionWorker(db *DB) *RetentionWorker {
	return &RetentionWorker{
		DB:           db,
		Interval:     15 * time.Minute,
		FixMaxAge:    7 * 24 * time.Hour,
		AlertMaxAge:  30 * 24 * time.Hour,
		OfflineAfter: 5 * time.Minute,
		Clock:        timeutil.RealClock{},
		StopChan:     make(chan struct{}),
	}
}

// Start runs the periodic worker loop in a goroutine.
func (w *RetentionWorker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.RunOnce(context.Background()); err != nil {
					log.Printf("retention worker run error: %v", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *RetentionWorker) Stop() {
	close(w.StopChan)
}

// RunOnce performs a single retention pass.
func (w *RetentionWorker) RunOnce(ctx context.Context) error {
	now := w.Clock.Now()

	if w.OfflineAfter > 0 {
		n, err := w.DB.MarkOffline(ctx, now.Add(-w.OfflineAfter).UnixMilli())
		if err != nil {
			return err
		}
		if n > 0 {
			log.Printf("Retention worker: marked %d subject(s) offline", n)
		}
	}

	if w.FixMaxAge > 0 {
		n, err := w.DB.PruneFixes(ctx, now.Add(-w.FixMaxAge).UnixMilli())
		if err != nil {
			return err
		}
		if n > 0 {
			log.Printf("Retention worker: pruned %d fixes older than %s", n, w.FixMaxAge)
		}
	}

	if w.AlertMaxAge > 0 {
		n, err := w.DB.PruneAlerts(ctx, now.Add(-w.AlertMaxAge).UnixMilli())
		if err != nil {
			return err
		}
		if n > 0 {
			log.Printf("Retention worker: pruned %d alerts older than %s", n, w.AlertMaxAge)
		}
	}

	return nil
}
