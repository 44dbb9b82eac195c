package websocket

import (
	"github.com/stemsi/exstem-proctor/internal/examroom"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

// ─── Actions (Client → Server) ──────────────────────────────────────
//
// Text frames carry one JSON action each. Binary frames carry webcam
// frames (JPEG, PNG or WebP) and have no envelope.

type Action string

const (
	ActionConfirm         Action = "confirm"
	ActionAnswer          Action = "answer"
	ActionClearAnswer     Action = "clear_answer"
	ActionToggleReview    Action = "toggle_review"
	ActionNext            Action = "next"
	ActionPrevious        Action = "previous"
	ActionJump            Action = "jump"
	ActionSubmit          Action = "submit"
	ActionFocus           Action = "focus"
	ActionKey             Action = "key"
	ActionFullscreenState Action = "fullscreen_state"
	ActionAcknowledge     Action = "acknowledge"
	ActionCameraError     Action = "camera_error"
	ActionPing            Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action" validate:"required"`
}

// QuestionRequest addresses one question.
type QuestionRequest struct {
	Action   Action `json:"action"`
	Subject  *int   `json:"subject" validate:"required,min=0"`
	Question *int   `json:"question" validate:"required,min=0"`
}

// Ref returns the addressed question.
func (r QuestionRequest) Ref() model.QuestionRef {
	return model.QuestionRef{Subject: *r.Subject, Question: *r.Question}
}

// AnswerRequest selects an option.
type AnswerRequest struct {
	QuestionRequest
	Option *int `json:"option" validate:"required,min=0,max=3"`
}

// FocusRequest reports a focus or visibility change.
type FocusRequest struct {
	Action Action             `json:"action"`
	Event  proctor.FocusEvent `json:"event" validate:"required,focus_event"`
}

// KeyRequest reports a keydown.
type KeyRequest struct {
	Action Action `json:"action"`
	proctor.KeyEvent
}

// FullscreenStateRequest reports the document's fullscreen flag.
type FullscreenStateRequest struct {
	Action Action `json:"action"`
	Active bool   `json:"active"`
}

// CameraErrorRequest reports that getUserMedia failed or the track ended.
type CameraErrorRequest struct {
	Action Action `json:"action"`
	Reason string `json:"reason" validate:"required,max=256"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventConfig     Event = "config"
	EventState      Event = "state"
	EventFullscreen Event = "fullscreen"
	EventCamera     Event = "camera"
	EventSubmitted  Event = "submitted"
	EventError      Event = "error"
	EventPong       Event = "pong"
)

// ConfigResponse is sent once after the room opened.
type ConfigResponse struct {
	Event               Event    `json:"event"`
	BlockedShortcuts    []string `json:"blocked_shortcuts"`
	DetectionIntervalMs int64    `json:"detection_interval_ms"`
	BanLimit            int      `json:"ban_limit"`
	Webcam              bool     `json:"webcam"`
}

type StateResponse struct {
	Event Event             `json:"event"`
	State examroom.Snapshot `json:"state"`
}

// FullscreenResponse asks the client to enter or leave fullscreen.
type FullscreenResponse struct {
	Event Event `json:"event"`
	Enter bool  `json:"enter"`
}

// CameraCommand values.
const (
	CameraStart = "start"
	CameraStop  = "stop"
)

// CameraResponse asks the client to start or stop streaming frames.
type CameraResponse struct {
	Event   Event  `json:"event"`
	Command string `json:"command"`
}

type SubmittedResponse struct {
	Event  Event                   `json:"event"`
	Result *model.SubmissionResult `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
