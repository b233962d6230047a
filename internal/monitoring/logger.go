// Package monitoring holds the process-wide diagnostic logger and the
// counters published on the tsweb /debug/varz page.
package monitoring

import (
	"expvar"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// counters is exported once as "guardian" so that repeated construction of
// dispatchers and sessions (as happens in tests) never re-registers a name.
var counters = expvar.NewMap("guardian")

// Counter names shared between packages.
const (
	DispatchQueued           = "dispatch_queued"
	DispatchDelivered        = "dispatch_delivered"
	DispatchDropped          = "dispatch_dropped"
	DispatchSuppressed       = "dispatch_suppressed"
	DispatchSkippedNoSubject = "dispatch_skipped_no_subject"
	DispatchFailures         = "dispatch_failures"
	MirrorFailures           = "mirror_failures"
	NotifyDenied             = "notify_permission_denied"
	NotifyFailures           = "notify_failures"
	IngestRejected           = "ingest_rejected"
	AnalysisRuns             = "analysis_runs"
)

// Inc adds one to the named counter.
func Inc(name string) {
	counters.Add(name, 1)
}

// Count returns the current value of the named counter, or 0 if it has
// never been incremented.
func Count(name string) int64 {
	v, ok := counters.Get(name).(*expvar.Int)
	if !ok || v == nil {
		return 0
	}
	return v.Value()
}
