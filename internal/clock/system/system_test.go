package system

import (
	"testing"
	"time"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestClockNowMicrosecondResolution(t *testing.T) {
	t.Parallel()

	got := New().Now()
	if got.Nanosecond()%1000 != 0 {
		t.Fatalf("expected microsecond resolution, got %d ns", got.Nanosecond())
	}
}
