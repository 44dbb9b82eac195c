package examroom

import (
	"context"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

// Event is an input to a room. The set is closed; build one of the types
// below and pass it to Room.Send.
type Event interface {
	apply(ctx context.Context, r *Room) error
}

// Confirm is the student's "start exam" gesture.
type Confirm struct{}

// SelectAnswer selects an option index for a question.
type SelectAnswer struct {
	Ref    model.QuestionRef
	Option int
}

// ClearAnswer removes the answer of a question.
type ClearAnswer struct {
	Ref model.QuestionRef
}

// ToggleReview flips the review mark of a question.
type ToggleReview struct {
	Ref model.QuestionRef
}

// Next moves the cursor forward.
type Next struct{}

// Previous moves the cursor back.
type Previous struct{}

// Jump moves the cursor to a question.
type Jump struct {
	Ref model.QuestionRef
}

// Submit is a confirmed manual submission.
type Submit struct{}

// Focus reports a browser focus or fullscreen event.
type Focus struct {
	Event proctor.FocusEvent
}

// Key reports a keydown.
type Key struct {
	proctor.KeyEvent
}

// FullscreenChanged reports the client's fullscreen flag.
type FullscreenChanged struct {
	Active bool
}

// Acknowledge dismisses the focus warning and returns to the exam.
type Acknowledge struct{}

// CameraFailed reports that the camera could not be used.
type CameraFailed struct {
	Reason string
}

// Tick advances the wall clock.
type Tick struct {
	At time.Time
}

type observed struct {
	obs proctor.Observation
}

func (Confirm) apply(ctx context.Context, r *Room) error {
	return r.confirm(ctx)
}

func (e SelectAnswer) apply(_ context.Context, r *Room) error {
	return r.selectAnswer(e.Ref, e.Option)
}

func (e ClearAnswer) apply(_ context.Context, r *Room) error {
	return r.clearAnswer(e.Ref)
}

func (e ToggleReview) apply(_ context.Context, r *Room) error {
	return r.toggleReview(e.Ref)
}

func (Next) apply(_ context.Context, r *Room) error {
	return r.step(1)
}

func (Previous) apply(_ context.Context, r *Room) error {
	return r.step(-1)
}

func (e Jump) apply(_ context.Context, r *Room) error {
	return r.jump(e.Ref)
}

func (Submit) apply(ctx context.Context, r *Room) error {
	if r.status.Terminal() {
		// Already submitted; a second request is a no-op.
		return nil
	}
	if !r.active() {
		return ErrNotActive
	}
	r.submit(ctx, model.SubmitManual)
	return nil
}

func (e Focus) apply(_ context.Context, r *Room) error {
	r.handleFocus(e.Event)
	return nil
}

func (e Key) apply(_ context.Context, r *Room) error {
	switch {
	case e.IsEscape():
		r.handleFocus(proctor.FocusEscapeKey)
	case r.active() && proctor.Intercept(e.KeyEvent):
		// The client already suppressed it; record it, never count it.
		r.log.Debug().Str("key", e.Key).Bool("ctrl", e.Ctrl).Bool("meta", e.Meta).Bool("alt", e.Alt).Msg("Blocked shortcut")
		ev := r.monitorEvent(model.MonitorShortcut)
		ev.Key = e.Key
		r.events = append(r.events, ev)
	}
	return nil
}

func (e FullscreenChanged) apply(_ context.Context, r *Room) error {
	r.fullscreen.SetActive(e.Active)
	if !e.Active {
		r.handleFocus(proctor.FocusFullscreenExit)
	}
	return nil
}

func (Acknowledge) apply(_ context.Context, r *Room) error {
	if r.focus != nil && r.active() {
		r.focus.Acknowledge()
	}
	return nil
}

func (e CameraFailed) apply(_ context.Context, r *Room) error {
	if !r.active() {
		return nil
	}
	r.log.Warn().Str("reason", e.Reason).Msg("Camera unavailable")
	// The rest of the attempt runs on focus and fullscreen checks only.
	r.stopWebcam()
	r.cameraErr = e.Reason
	r.tracker.Reset()
	r.lastObs = proctor.Observation{}
	return nil
}

func (e Tick) apply(_ context.Context, r *Room) error {
	r.tick(e.At)
	return nil
}

func (e observed) apply(_ context.Context, r *Room) error {
	// Observations already queued when the camera failed are dropped.
	if !r.active() || r.cameraErr != "" {
		return nil
	}
	r.lastObs = e.obs
	r.tracker.Observe(e.obs.Type)
	return nil
}
