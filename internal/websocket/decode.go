package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stemsi/exstem-proctor/internal/examroom"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Decode turns one text frame into a room event. Ping has no room event and
// yields a nil Event.
func Decode(data []byte) (Action, examroom.Event, error) {
	var env RequestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch env.Action {
	case ActionPing:
		return env.Action, nil, nil
	case ActionConfirm:
		return env.Action, examroom.Confirm{}, nil
	case ActionNext:
		return env.Action, examroom.Next{}, nil
	case ActionPrevious:
		return env.Action, examroom.Previous{}, nil
	case ActionSubmit:
		return env.Action, examroom.Submit{}, nil
	case ActionAcknowledge:
		return env.Action, examroom.Acknowledge{}, nil

	case ActionAnswer:
		var req AnswerRequest
		if err := parse(data, &req); err != nil {
			return env.Action, nil, err
		}
		return env.Action, examroom.SelectAnswer{Ref: req.Ref(), Option: *req.Option}, nil

	case ActionClearAnswer, ActionToggleReview, ActionJump:
		var req QuestionRequest
		if err := parse(data, &req); err != nil {
			return env.Action, nil, err
		}
		switch env.Action {
		case ActionClearAnswer:
			return env.Action, examroom.ClearAnswer{Ref: req.Ref()}, nil
		case ActionToggleReview:
			return env.Action, examroom.ToggleReview{Ref: req.Ref()}, nil
		}
		return env.Action, examroom.Jump{Ref: req.Ref()}, nil

	case ActionFocus:
		var req FocusRequest
		if err := parse(data, &req); err != nil {
			return env.Action, nil, err
		}
		return env.Action, examroom.Focus{Event: req.Event}, nil

	case ActionKey:
		var req KeyRequest
		if err := parse(data, &req); err != nil {
			return env.Action, nil, err
		}
		return env.Action, examroom.Key{KeyEvent: req.KeyEvent}, nil

	case ActionFullscreenState:
		var req FullscreenStateRequest
		if err := parse(data, &req); err != nil {
			return env.Action, nil, err
		}
		return env.Action, examroom.FullscreenChanged{Active: req.Active}, nil

	case ActionCameraError:
		var req CameraErrorRequest
		if err := parse(data, &req); err != nil {
			return env.Action, nil, err
		}
		return env.Action, examroom.CameraFailed{Reason: req.Reason}, nil
	}

	return env.Action, nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
}

func parse(data []byte, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if fields := validator.Struct(dst); fields != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, joinFields(fields))
	}
	return nil
}

func joinFields(fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for _, msg := range fields {
		parts = append(parts, msg)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
