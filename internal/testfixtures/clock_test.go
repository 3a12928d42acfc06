package testfixtures

import (
	"testing"
	"time"
)

func TestClock_DefaultsToReferenceTime(t *testing.T) {
	t.Parallel()
	if got := NewClock(time.Time{}).Now(); !got.Equal(ReferenceTime()) {
		t.Fatalf("expected reference time, got %v", got)
	}
}

func TestClock_AdvanceAndSet(t *testing.T) {
	t.Parallel()
	start := ReferenceTime()
	clock := NewClock(start)
	now := clock.NowFunc()

	if got := clock.Advance(90 * time.Minute); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", got)
	}
	clock.Set(start.Add(2 * time.Hour))
	if got := now(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %v from NowFunc, got %v", start.Add(2*time.Hour), got)
	}
}
