package alert

import (
	"context"
	"errors"
)

// MultiStore fans a status update out to several stores. Every store is
// attempted; the errors are joined.
type MultiStore []StatusStore

func (m MultiStore) MergeStatus(ctx context.Context, subjectID string, fields map[string]any) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.MergeStatus(ctx, subjectID, fields); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiNotifier fans a notification out to several notifiers. A permission
// denial from any of them is preserved in the joined error so callers can
// still match it with errors.Is.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if nt == nil {
			continue
		}
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiJournal appends a delivered alert to several journals.
type MultiJournal []Journal

func (m MultiJournal) AppendAlert(ctx context.Context, rec Record) error {
	var errs []error
	for _, j := range m {
		if j == nil {
			continue
		}
		if err := j.AppendAlert(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
