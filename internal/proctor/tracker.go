package proctor

import "github.com/stemsi/exstem-proctor/internal/model"

// Tracker is the continuous-duration timer of the active webcam condition.
//
// A counted condition that persists warnAfter ticks turns IsViolating on.
// At countAfter ticks it reaches the threshold, fires onThreshold once and
// re-arms, so a sustained condition counts again every countAfter ticks.
// Duration keeps growing across re-arms; any change of condition resets it.
type Tracker struct {
	warnAfter   int
	countAfter  int
	onThreshold func(model.WebcamViolationStatus)

	status model.WebcamViolationStatus
	armed  int
}

// NewTracker creates a tracker. Both stages are in ticks (seconds).
func NewTracker(warnAfter, countAfter int, onThreshold func(model.WebcamViolationStatus)) *Tracker {
	if countAfter < 1 {
		countAfter = 1
	}
	return &Tracker{
		warnAfter:   warnAfter,
		countAfter:  countAfter,
		onThreshold: onThreshold,
	}
}

// Observe sets the detected condition. Re-observing the active type keeps
// the running timer; anything else cancels it without firing.
func (t *Tracker) Observe(typ model.WebcamViolationType) {
	if typ == t.status.Type {
		return
	}
	t.status = model.WebcamViolationStatus{Type: typ}
	t.armed = 0
}

// Tick advances the timer by one second and reports whether the threshold
// was reached on this tick.
func (t *Tracker) Tick() bool {
	if !t.status.Type.Counted() {
		return false
	}

	t.status.Duration++
	t.armed++
	if t.armed >= t.warnAfter {
		t.status.IsViolating = true
	}
	if t.armed < t.countAfter {
		return false
	}

	t.status.HasReachedThreshold = true
	t.armed = 0
	if t.onThreshold != nil {
		t.onThreshold(t.status)
	}
	return true
}

// Reset clears the condition, e.g. when the exam ends.
func (t *Tracker) Reset() {
	t.Observe(model.WebcamViolationNone)
}

// Status returns the current status.
func (t *Tracker) Status() model.WebcamViolationStatus {
	return t.status
}

// SecondsUntilCount is the countdown shown next to an early warning.
func (t *Tracker) SecondsUntilCount() int {
	if !t.status.Type.Counted() {
		return 0
	}
	return t.countAfter - t.armed
}
