package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/monitoring"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/timeutil"
)

// ErrPermissionDenied is returned by a Notifier when the notification
// surface refuses to show anything. The Dispatcher treats it as non-fatal.
var ErrPermissionDenied = errors.New("notification permission denied")

// StatusStore accepts merge-style partial updates of a subject's status
// document.
type StatusStore interface {
	MergeStatus(ctx context.Context, subjectID string, fields map[string]any) error
}

// Notifier surfaces a notification to the guardian. Implementations return
// ErrPermissionDenied (possibly wrapped) when delivery is refused by policy.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Journal keeps an append-only log of delivered alerts.
type Journal interface {
	AppendAlert(ctx context.Context, rec Record) error
}

// Options configures a Dispatcher. Zero values select the defaults.
type Options struct {
	Workers   int           // default 2
	QueueSize int           // default 64
	Timeout   time.Duration // per-record deadline, default 10s
	// Cooldown suppresses repeats of the same (subject, kind) within the
	// window. Zero disables it so every call is forwarded independently.
	Cooldown time.Duration
	Clock    timeutil.Clock
	Journal  Journal
	// Mirror receives the same status update after the primary store has
	// accepted it. Its failures are logged and counted but never end the
	// delivery.
	Mirror StatusStore
}

const (
	defaultWorkers   = 2
	defaultQueueSize = 64
	defaultTimeout   = 10 * time.Second
)

// Stats is a point-in-time copy of a Dispatcher's counters.
type Stats struct {
	Queued           int64
	Delivered        int64
	Dropped          int64
	Suppressed       int64
	SkippedNoSubject int64
	Failures         int64
	MirrorFailures   int64
	NotifyDenied     int64
	NotifyFailures   int64
}

type stats struct {
	queued         atomic.Int64
	delivered      atomic.Int64
	dropped        atomic.Int64
	suppressed     atomic.Int64
	skipped        atomic.Int64
	failures       atomic.Int64
	mirrorFailures atomic.Int64
	denied         atomic.Int64
	notifyFailures atomic.Int64
}

type cooldownKey struct {
	subject string
	kind    Kind
}

// Dispatcher forwards alert records to a StatusStore and Notifier on a pool
// of worker goroutines. Dispatch never blocks and never fails; problems are
// logged and counted.
type Dispatcher struct {
	store    StatusStore
	notifier Notifier
	opts     Options

	queue  chan Record
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool

	cooldownMu sync.Mutex
	lastSent   map[cooldownKey]time.Time

	stats stats
}

// NewDispatcher returns a Dispatcher writing to store and notifying through
// notifier. Either may be nil. Call Start to begin delivery.
func NewDispatcher(store StatusStore, notifier Notifier, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		opts:     opts,
		queue:    make(chan Record, opts.QueueSize),
		lastSent: make(map[cooldownKey]time.Time),
	}
}

// Start launches the worker goroutines. Pending work is cancelled when ctx
// is done or Close is called. Start is a no-op after the first call.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Close cancels pending deliveries and waits for the workers to exit.
// In-flight store writes are not rolled back.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Dispatch queues rec for delivery. A blank subject is skipped without any
// external call; a full queue drops the record.
func (d *Dispatcher) Dispatch(rec Record) {
	if strings.TrimSpace(rec.SubjectID) == "" {
		d.stats.skipped.Add(1)
		monitoring.Inc(monitoring.DispatchSkippedNoSubject)
		return
	}

	now := d.opts.Clock.Now()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.EmittedAtMs == 0 {
		rec.EmittedAtMs = now.UnixMilli()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.stats.dropped.Add(1)
		monitoring.Inc(monitoring.DispatchDropped)
		return
	}
	if !d.admit(rec, now) {
		d.stats.suppressed.Add(1)
		monitoring.Inc(monitoring.DispatchSuppressed)
		return
	}

	select {
	case d.queue <- rec:
		d.stats.queued.Add(1)
		monitoring.Inc(monitoring.DispatchQueued)
	default:
		d.stats.dropped.Add(1)
		monitoring.Inc(monitoring.DispatchDropped)
		monitoring.Logf("alert: queue full, dropped %s alert %s for %s", rec.Kind, rec.ID, rec.SubjectID)
	}
}

// admit applies the cooldown. Called with d.mu read-held.
func (d *Dispatcher) admit(rec Record, now time.Time) bool {
	if d.opts.Cooldown <= 0 {
		return true
	}
	key := cooldownKey{subject: rec.SubjectID, kind: rec.Kind}
	d.cooldownMu.Lock()
	defer d.cooldownMu.Unlock()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.opts.Cooldown {
		return false
	}
	d.lastSent[key] = now
	return true
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case rec := <-d.queue:
			// Cancellation wins over a backlog.
			if d.ctx.Err() != nil {
				return
			}
			d.deliver(rec)
		}
	}
}

func (d *Dispatcher) deliver(rec Record) {
	ctx, cancel := context.WithTimeout(d.ctx, d.opts.Timeout)
	defer cancel()

	if d.store != nil {
		if err := d.store.MergeStatus(ctx, rec.SubjectID, rec.Fields()); err != nil {
			d.stats.failures.Add(1)
			monitoring.Inc(monitoring.DispatchFailures)
			monitoring.Logf("alert: status write for %s (%s) failed: %v", rec.SubjectID, rec.Kind, err)
			return
		}
	}

	if d.opts.Mirror != nil {
		if err := d.opts.Mirror.MergeStatus(ctx, rec.SubjectID, rec.Fields()); err != nil {
			d.stats.mirrorFailures.Add(1)
			monitoring.Inc(monitoring.MirrorFailures)
			monitoring.Logf("alert: status mirror for %s (%s) failed: %v", rec.SubjectID, rec.Kind, err)
		}
	}

	if d.opts.Journal != nil {
		if err := d.opts.Journal.AppendAlert(ctx, rec); err != nil {
			d.stats.failures.Add(1)
			monitoring.Inc(monitoring.DispatchFailures)
			monitoring.Logf("alert: journal append for %s failed: %v", rec.ID, err)
		}
	}

	if n, ok := rec.Notification(); ok && d.notifier != nil {
		if err := d.notifier.Notify(ctx, n); err != nil {
			if errors.Is(err, ErrPermissionDenied) {
				d.stats.denied.Add(1)
				monitoring.Inc(monitoring.NotifyDenied)
				monitoring.Logf("alert: notification permission rejected: %v", err)
			} else {
				d.stats.notifyFailures.Add(1)
				monitoring.Inc(monitoring.NotifyFailures)
				monitoring.Logf("alert: notification failed: %v", err)
			}
		}
	}

	d.stats.delivered.Add(1)
	monitoring.Inc(monitoring.DispatchDelivered)
}

// Stats returns the dispatcher's counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:           d.stats.queued.Load(),
		Delivered:        d.stats.delivered.Load(),
		Dropped:          d.stats.dropped.Load(),
		Suppressed:       d.stats.suppressed.Load(),
		SkippedNoSubject: d.stats.skipped.Load(),
		Failures:         d.stats.failures.Load(),
		MirrorFailures:   d.stats.mirrorFailures.Load(),
		NotifyDenied:     d.stats.denied.Load(),
		NotifyFailures:   d.stats.notifyFailures.Load(),
	}
}
