package websocket

import (
	"errors"
	"testing"

	"github.com/stemsi/exstem-proctor/internal/examroom"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

func TestDecodeActions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want examroom.Event
	}{
		{"confirm", `{"action":"confirm"}`, examroom.Confirm{}},
		{"answer", `{"action":"answer","subject":1,"question":0,"option":3}`,
			examroom.SelectAnswer{Ref: model.QuestionRef{Subject: 1, Question: 0}, Option: 3}},
		{"clear", `{"action":"clear_answer","subject":0,"question":4}`,
			examroom.ClearAnswer{Ref: model.QuestionRef{Subject: 0, Question: 4}}},
		{"jump", `{"action":"jump","subject":1,"question":2}`,
			examroom.Jump{Ref: model.QuestionRef{Subject: 1, Question: 2}}},
		{"focus", `{"action":"focus","event":"visibility_hidden"}`,
			examroom.Focus{Event: proctor.FocusVisibilityHidden}},
		{"key", `{"action":"key","key":"Escape"}`,
			examroom.Key{KeyEvent: proctor.KeyEvent{Key: "Escape"}}},
		{"fullscreen", `{"action":"fullscreen_state","active":false}`,
			examroom.FullscreenChanged{Active: false}},
		{"camera", `{"action":"camera_error","reason":"NotAllowedError"}`,
			examroom.CameraFailed{Reason: "NotAllowedError"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ev, err := Decode([]byte(tt.in))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if ev != tt.want {
				t.Fatalf("got %#v, want %#v", ev, tt.want)
			}
		})
	}
}

func TestDecodePingHasNoEvent(t *testing.T) {
	action, ev, err := Decode([]byte(`{"action":"ping"}`))
	if err != nil || action != ActionPing || ev != nil {
		t.Fatalf("unexpected ping decode: %q %v %v", action, ev, err)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"not json", `{`, ErrInvalidPayload},
		{"unknown", `{"action":"teleport"}`, ErrUnknownAction},
		{"missing option", `{"action":"answer","subject":0,"question":0}`, ErrInvalidPayload},
		{"option too big", `{"action":"answer","subject":0,"question":0,"option":4}`, ErrInvalidPayload},
		{"negative index", `{"action":"jump","subject":-1,"question":0}`, ErrInvalidPayload},
		{"bad focus event", `{"action":"focus","event":"mouse_leave"}`, ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode([]byte(tt.in)); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
