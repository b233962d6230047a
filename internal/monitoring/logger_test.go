package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("fix from %s", "kid-1")
	if got != "fix from kid-1" {
		t.Errorf("custom logger got %q", got)
	}

	// nil installs a no-op logger
	got = ""
	SetLogger(nil)
	Logf("muted")
	if got != "" {
		t.Errorf("no-op logger should not reach the previous logger, got %q", got)
	}
}

func TestCounters(t *testing.T) {
	const name = "test_counter_only"
	if c := Count(name); c != 0 {
		t.Fatalf("fresh counter = %d, want 0", c)
	}
	Inc(name)
	Inc(name)
	if c := Count(name); c != 2 {
		t.Errorf("counter = %d, want 2", c)
	}
}
