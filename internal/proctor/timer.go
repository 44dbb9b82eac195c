package proctor

import "time"

// Timer is a wall-clock countdown over an absolute exam window.
// Remaining time is always recomputed from the window end, never from a
// tick count, so a suspended client or a reconnect reads the right value.
type Timer struct {
	start    time.Time
	end      time.Time
	onTimeUp func()

	active    bool
	fired     bool
	remaining int
}

// NewTimer creates an inactive timer for [start, end).
func NewTimer(start, end time.Time, onTimeUp func()) *Timer {
	return &Timer{start: start, end: end, onTimeUp: onTimeUp}
}

// Activate starts the countdown and returns the seconds left. If the window
// is already closed the time-up callback fires before Activate returns.
func (t *Timer) Activate(now time.Time) int {
	t.active = true
	return t.recompute(now)
}

// Tick recomputes the countdown. It is a no-op once the timer stopped.
func (t *Timer) Tick(now time.Time) int {
	if !t.active {
		return t.remaining
	}
	return t.recompute(now)
}

// Stop cancels the countdown without firing.
func (t *Timer) Stop() {
	t.active = false
}

// Remaining returns the last computed seconds left.
func (t *Timer) Remaining() int {
	return t.remaining
}

// Active reports whether the countdown is running.
func (t *Timer) Active() bool {
	return t.active
}

// Fired reports whether time-up was signalled.
func (t *Timer) Fired() bool {
	return t.fired
}

func (t *Timer) recompute(now time.Time) int {
	if now.Before(t.start) {
		// Not open yet.
		t.remaining = 0
		return 0
	}

	t.remaining = SecondsLeft(t.end, now)
	if t.remaining == 0 {
		t.active = false
		if !t.fired {
			t.fired = true
			if t.onTimeUp != nil {
				t.onTimeUp()
			}
		}
	}
	return t.remaining
}

// SecondsLeft returns max(0, floor((end-now)/1s)).
func SecondsLeft(end, now time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
