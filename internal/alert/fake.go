package alert

import (
	"context"
	"maps"
	"sync"
)

// Merge is one recorded MergeStatus call.
type Merge struct {
	SubjectID string
	Fields    map[string]any
}

// Recorder is an in-memory StatusStore, Notifier and Journal. The dev-mode
// binary uses it when no database is configured, and tests use it to observe
// what the Dispatcher forwarded. The error fields are returned verbatim when
// set.
type Recorder struct {
	mu            sync.Mutex
	merges        []Merge
	notifications []Notification
	journal       []Record

	StoreErr   error
	NotifyErr  error
	JournalErr error
}

func (r *Recorder) MergeStatus(_ context.Context, subjectID string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merges = append(r.merges, Merge{SubjectID: subjectID, Fields: maps.Clone(fields)})
	return r.StoreErr
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
	return r.NotifyErr
}

func (r *Recorder) AppendAlert(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal = append(r.journal, rec)
	return r.JournalErr
}

// Merges returns a copy of the recorded status writes.
func (r *Recorder) Merges() []Merge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Merge(nil), r.merges...)
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Journal returns a copy of the recorded journal entries.
func (r *Recorder) Journal() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.journal...)
}

// Calls is the total number of external calls observed.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.merges) + len(r.notifications) + len(r.journal)
}
