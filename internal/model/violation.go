package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationKind is a focus/integrity violation raised by browser events.
type ViolationKind string

const (
	ViolationFullscreenExit ViolationKind = "fullscreen_exit"
	ViolationTabSwitching   ViolationKind = "tab_switching"
	ViolationEscapeKey      ViolationKind = "escape_key"
	ViolationWindowBlur     ViolationKind = "window_blur"
)

// Label is the human-readable text shown in the blocking warning.
func (k ViolationKind) Label() string {
	switch k {
	case ViolationFullscreenExit:
		return "Exited fullscreen mode"
	case ViolationTabSwitching:
		return "Switched tab or application"
	case ViolationEscapeKey:
		return "Pressed the Escape key"
	case ViolationWindowBlur:
		return "Exam window lost focus"
	default:
		return "Integrity violation"
	}
}

// ViolationCounters holds the four typed counters and their sum.
type ViolationCounters struct {
	FullscreenExit int `json:"fullscreen_exit"`
	TabSwitching   int `json:"tab_switching"`
	EscapeKey      int `json:"escape_key"`
	WindowBlur     int `json:"window_blur"`
	Total          int `json:"total"`
}

// Inc increments the counter of kind and the total.
func (c *ViolationCounters) Inc(kind ViolationKind) {
	switch kind {
	case ViolationFullscreenExit:
		c.FullscreenExit++
	case ViolationTabSwitching:
		c.TabSwitching++
	case ViolationEscapeKey:
		c.EscapeKey++
	case ViolationWindowBlur:
		c.WindowBlur++
	default:
		return
	}
	c.Total++
}

// WebcamViolationType is the active webcam condition. The empty value means clear.
type WebcamViolationType string

const (
	WebcamViolationNone       WebcamViolationType = ""
	WebcamMissingFace         WebcamViolationType = "missing_face"
	WebcamMultipleFaces       WebcamViolationType = "multiple_faces"
	WebcamFaceMismatch        WebcamViolationType = "face_mismatch"
	WebcamHeadPositionWarning WebcamViolationType = "head_position_warning"
)

// Counted reports whether a sustained occurrence of t counts towards the ban.
func (t WebcamViolationType) Counted() bool {
	switch t {
	case WebcamMissingFace, WebcamMultipleFaces, WebcamFaceMismatch:
		return true
	}
	return false
}

// WebcamViolationStatus is transient: it is re-derived live after a reload.
type WebcamViolationStatus struct {
	Type                WebcamViolationType `json:"type"`
	Duration            int                 `json:"duration"`
	IsViolating         bool                `json:"is_violating"`
	HasReachedThreshold bool                `json:"has_reached_threshold"`
}

// ViolationLog is one record sent to the violation log.
type ViolationLog struct {
	ExamID       uuid.UUID `json:"exam_id"`
	StudentID    int       `json:"student_id"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	Duration     int       `json:"duration"`
	HeadPosition HeadPose  `json:"head_position,omitempty"`
}
