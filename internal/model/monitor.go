package model

import (
	"time"

	"github.com/google/uuid"
)

// MonitorEventType names an event on the admin live monitor feed.
type MonitorEventType string

const (
	MonitorJoined    MonitorEventType = "joined"
	MonitorViolation MonitorEventType = "violation"
	MonitorThreshold MonitorEventType = "threshold"
	MonitorBanned    MonitorEventType = "banned"
	MonitorSubmitted MonitorEventType = "submitted"
	// MonitorShortcut is informational; blocked shortcuts never count.
	MonitorShortcut MonitorEventType = "shortcut_blocked"
)

// MonitorEvent is published on the exam monitor channel.
type MonitorEvent struct {
	Type             MonitorEventType `json:"type"`
	ExamID           uuid.UUID        `json:"exam_id"`
	StudentID        int              `json:"student_id"`
	Violation        string           `json:"violation,omitempty"`
	Duration         int              `json:"duration,omitempty"`
	Key              string           `json:"key,omitempty"`
	CommonViolations int              `json:"common_violations"`
	Timestamp        time.Time        `json:"timestamp"`
}

// StudentViolationSummary is one row of the monitor snapshot.
type StudentViolationSummary struct {
	StudentID    int            `json:"student_id"`
	StudentName  string         `json:"student_name"`
	Total        int            `json:"total"`
	ByType       map[string]int `json:"by_type"`
	LastSeen     time.Time      `json:"last_seen"`
	Submitted    bool           `json:"submitted"`
	SubmitReason SubmitReason   `json:"submit_reason,omitempty"`
}
