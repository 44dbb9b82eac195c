package proctor

import (
	"strings"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// FocusEvent is a browser event that may breach exam integrity.
type FocusEvent string

const (
	FocusVisibilityHidden FocusEvent = "visibility_hidden"
	FocusWindowBlur       FocusEvent = "window_blur"
	FocusFullscreenExit   FocusEvent = "fullscreen_exit"
	FocusEscapeKey        FocusEvent = "escape_key"
)

// Kind maps the event onto its violation counter.
func (e FocusEvent) Kind() (model.ViolationKind, bool) {
	switch e {
	case FocusVisibilityHidden:
		return model.ViolationTabSwitching, true
	case FocusWindowBlur:
		return model.ViolationWindowBlur, true
	case FocusFullscreenExit:
		return model.ViolationFullscreenExit, true
	case FocusEscapeKey:
		return model.ViolationEscapeKey, true
	}
	return "", false
}

// FocusState is the state of the focus monitor.
type FocusState string

const (
	FocusMonitoring   FocusState = "MONITORING"
	FocusWarningShown FocusState = "WARNING_SHOWN"
)

// FocusMonitor counts focus/fullscreen violations. After each counted event
// it holds a blocking warning and ignores further events until the student
// acknowledges, so one action (blur followed by hidden) counts once.
type FocusMonitor struct {
	fullscreen *Fullscreen
	counters   model.ViolationCounters
	state      FocusState
	label      string
	onChange   func(model.ViolationCounters, model.ViolationKind)
}

// NewFocusMonitor creates a monitor seeded with rehydrated counters.
// onChange runs after every counted event.
func NewFocusMonitor(fs *Fullscreen, counters model.ViolationCounters, onChange func(model.ViolationCounters, model.ViolationKind)) *FocusMonitor {
	return &FocusMonitor{
		fullscreen: fs,
		counters:   counters,
		state:      FocusMonitoring,
		onChange:   onChange,
	}
}

// Handle processes one event. examActive must be examStarted && !examCompleted.
// It reports whether the event was counted.
func (m *FocusMonitor) Handle(ev FocusEvent, examActive bool) bool {
	if !examActive || m.state != FocusMonitoring {
		return false
	}
	kind, ok := ev.Kind()
	if !ok {
		return false
	}

	m.counters.Inc(kind)
	m.label = kind.Label()
	m.state = FocusWarningShown
	if ev == FocusFullscreenExit && m.fullscreen != nil {
		m.fullscreen.SetActive(false)
	}

	if m.onChange != nil {
		m.onChange(m.counters, kind)
	}
	return true
}

// Acknowledge is the warning's "return to exam" action: it re-requests
// fullscreen and resumes monitoring.
func (m *FocusMonitor) Acknowledge() {
	if m.state != FocusWarningShown {
		return
	}
	if m.fullscreen != nil {
		m.fullscreen.Enter()
	}
	m.state = FocusMonitoring
	m.label = ""
}

// Counters returns a copy of the typed counters.
func (m *FocusMonitor) Counters() model.ViolationCounters {
	return m.counters
}

// State returns the current state.
func (m *FocusMonitor) State() FocusState {
	return m.state
}

// ViolationType is the label of the pending warning, empty when monitoring.
func (m *FocusMonitor) ViolationType() string {
	return m.label
}

// KeyEvent is a keydown reported by the client.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Alt   bool   `json:"alt"`
	Shift bool   `json:"shift"`
}

// IsEscape reports whether the key is Escape.
func (k KeyEvent) IsEscape() bool {
	return k.Key == "Escape" || k.Key == "Esc"
}

// Intercept reports whether the shortcut must be suppressed on the client.
// Suppressed shortcuts are preventive only and never count as violations.
func Intercept(k KeyEvent) bool {
	key := strings.ToLower(k.Key)
	if k.Ctrl || k.Meta {
		switch key {
		case "w", "t", "n":
			return true
		}
	}
	if k.Alt && key == "tab" {
		return true
	}
	return key == "f11"
}

// BlockedShortcuts is the shortcut list pushed to the client on connect.
var BlockedShortcuts = []string{"Ctrl+W", "Ctrl+T", "Ctrl+N", "Meta+W", "Meta+T", "Meta+N", "Alt+Tab", "F11", "ContextMenu"}
