package proctor

import (
	"testing"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func TestTrackerThresholdAndRearm(t *testing.T) {
	var fired []int
	tr := NewTracker(3, 10, func(s model.WebcamViolationStatus) { fired = append(fired, s.Duration) })
	tr.Observe(model.WebcamMissingFace)

	for tick := 1; tick <= 25; tick++ {
		tr.Observe(model.WebcamMissingFace)
		reached := tr.Tick()
		if reached != (tick == 10 || tick == 20) {
			t.Fatalf("tick %d: reached = %v", tick, reached)
		}
		s := tr.Status()
		if tick < 3 && s.IsViolating {
			t.Fatalf("tick %d: violating too early", tick)
		}
		if tick >= 3 && !s.IsViolating {
			t.Fatalf("tick %d: expected violating", tick)
		}
		if tick < 10 && s.HasReachedThreshold {
			t.Fatalf("tick %d: threshold too early", tick)
		}
	}
	if len(fired) != 2 || fired[0] != 10 || fired[1] != 20 {
		t.Fatalf("expected crossings at 10 and 20, got %v", fired)
	}
}

func TestTrackerMissingFaceForTwelveSeconds(t *testing.T) {
	calls := 0
	tr := NewTracker(3, 10, func(model.WebcamViolationStatus) { calls++ })
	for i := 0; i < 12; i++ {
		tr.Observe(model.WebcamMissingFace)
		tr.Tick()
	}
	if calls != 1 {
		t.Fatalf("expected exactly one callback, got %d", calls)
	}
	if d := tr.Status().Duration; d != 12 {
		t.Fatalf("expected duration 12, got %d", d)
	}
	if left := tr.SecondsUntilCount(); left != 8 {
		t.Fatalf("expected the fresh timer 8s away from the next crossing, got %d", left)
	}
}

func TestTrackerSwitchResets(t *testing.T) {
	calls := 0
	tr := NewTracker(3, 10, func(model.WebcamViolationStatus) { calls++ })
	tr.Observe(model.WebcamMissingFace)
	for i := 0; i < 9; i++ {
		tr.Tick()
	}
	tr.Observe(model.WebcamMultipleFaces)
	if s := tr.Status(); s.Duration != 0 || s.IsViolating || s.Type != model.WebcamMultipleFaces {
		t.Fatalf("expected fresh status, got %+v", s)
	}
	tr.Tick()
	tr.Observe(model.WebcamViolationNone)
	for i := 0; i < 20; i++ {
		tr.Tick()
	}
	if calls != 0 {
		t.Fatalf("expected no crossing, got %d", calls)
	}
}

func TestTrackerIgnoresAdvisoryWarning(t *testing.T) {
	calls := 0
	tr := NewTracker(3, 10, func(model.WebcamViolationStatus) { calls++ })
	tr.Observe(model.WebcamHeadPositionWarning)
	for i := 0; i < 30; i++ {
		tr.Tick()
	}
	s := tr.Status()
	if calls != 0 || s.Duration != 0 || s.IsViolating {
		t.Fatalf("advisory warning must never count, got %+v calls=%d", s, calls)
	}
	if s.Type != model.WebcamHeadPositionWarning {
		t.Fatalf("expected warning type to remain visible")
	}
}
