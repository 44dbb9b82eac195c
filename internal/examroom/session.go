package examroom

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

func (r *Room) confirm(ctx context.Context) error {
	if r.status != model.SessionStatusAwaitingConfirmation {
		return ErrNotAwaiting
	}

	now := r.now()
	if start, _ := r.exam.Window(); now.Before(start) {
		return ErrNotOpen
	}
	r.status = model.SessionStatusActive
	if r.state.StartedAt.IsZero() {
		r.state.StartedAt = now
		r.dirty |= dirtyStarted
	}

	r.fullscreen.Enter()
	r.visit(r.state.Position())
	r.startWebcam(ctx)
	r.publish(model.MonitorJoined, "", 0)
	r.log.Info().Msg("Exam started")

	// Either may raise a terminal transition that settle picks up.
	r.timeLeft = r.timer.Activate(now)
	r.agg.Check(true)
	return nil
}

func (r *Room) selectAnswer(ref model.QuestionRef, option int) error {
	if !r.active() {
		return ErrNotActive
	}
	q, ok := r.exam.Question(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOutOfRange, ref)
	}
	if option < 0 || option >= len(q.Options) {
		return fmt.Errorf("%w: %d", ErrInvalidOption, option)
	}

	if cur, ok := r.state.Answers[ref]; ok && cur == option {
		return nil
	}
	r.state.Answers[ref] = option
	r.dirty |= dirtyAnswers
	return nil
}

func (r *Room) clearAnswer(ref model.QuestionRef) error {
	if !r.active() {
		return ErrNotActive
	}
	if _, ok := r.exam.Question(ref); !ok {
		return fmt.Errorf("%w: %s", ErrOutOfRange, ref)
	}
	if _, ok := r.state.Answers[ref]; !ok {
		return nil
	}
	delete(r.state.Answers, ref)
	r.dirty |= dirtyAnswers
	return nil
}

func (r *Room) toggleReview(ref model.QuestionRef) error {
	if !r.active() {
		return ErrNotActive
	}
	if _, ok := r.exam.Question(ref); !ok {
		return fmt.Errorf("%w: %s", ErrOutOfRange, ref)
	}
	if r.state.ReviewMarked.Has(ref) {
		delete(r.state.ReviewMarked, ref)
	} else {
		r.state.ReviewMarked[ref] = struct{}{}
	}
	r.dirty |= dirtyReview
	return nil
}

// step moves the cursor by delta over the flattened question list, clamped
// to both ends.
func (r *Room) step(delta int) error {
	if !r.active() {
		return ErrNotActive
	}
	total := r.exam.TotalQuestions()
	if total == 0 {
		return nil
	}
	idx, ok := r.exam.FlatIndex(r.state.Position())
	if !ok {
		idx = 0
	}
	idx = min(max(idx+delta, 0), total-1)

	ref, _ := r.exam.Locate(idx)
	r.moveTo(ref)
	return nil
}

func (r *Room) jump(ref model.QuestionRef) error {
	if !r.active() {
		return ErrNotActive
	}
	if _, ok := r.exam.Question(ref); !ok {
		return fmt.Errorf("%w: %s", ErrOutOfRange, ref)
	}
	r.moveTo(ref)
	return nil
}

func (r *Room) moveTo(ref model.QuestionRef) {
	if ref != r.state.Position() {
		r.state.CurrentSubject, r.state.CurrentQuestion = ref.Subject, ref.Question
		r.dirty |= dirtyPosition
	}
	r.visit(ref)
}

// visit marks ref visited. The set only grows.
func (r *Room) visit(ref model.QuestionRef) {
	if r.state.Visited.Has(ref) {
		return
	}
	r.state.Visited[ref] = struct{}{}
	r.dirty |= dirtyVisited
}

func (r *Room) tick(now time.Time) {
	if !r.active() {
		return
	}
	r.timeLeft = r.timer.Tick(now)
	r.tracker.Tick()
}

func (r *Room) handleFocus(ev proctor.FocusEvent) {
	if r.focus == nil {
		return
	}
	r.focus.Handle(ev, r.active())
}

func (r *Room) onFocusViolation(counters model.ViolationCounters, kind model.ViolationKind) {
	r.state.Violations = counters
	r.dirty |= dirtyViolations
	r.log.Warn().Str("violation", string(kind)).Int("total", counters.Total).Msg("Focus violation")

	r.logs = append(r.logs, model.ViolationLog{
		ExamID:    r.key.ExamID,
		StudentID: r.key.StudentID,
		Type:      string(kind),
		Timestamp: r.now(),
	})
	r.agg.ObserveFocusTotal(counters.Total, r.active())
	r.publish(model.MonitorViolation, string(kind), 0)
}

func (r *Room) onThreshold(status model.WebcamViolationStatus) {
	r.log.Warn().
		Str("violation", string(status.Type)).
		Int("duration", status.Duration).
		Msg("Webcam violation threshold reached")

	r.logs = append(r.logs, model.ViolationLog{
		ExamID:       r.key.ExamID,
		StudentID:    r.key.StudentID,
		Type:         string(status.Type),
		Timestamp:    r.now(),
		Duration:     status.Duration,
		HeadPosition: r.lastObs.HeadPose,
	})
	if r.agg != nil {
		r.agg.AddThreshold(status.Type, r.active())
	}
	r.publish(model.MonitorThreshold, string(status.Type), status.Duration)
}

func (r *Room) onCommonChange(count int) {
	r.state.CommonViolations = count
	r.dirty |= dirtyCommon
}

func (r *Room) onBan(count int) {
	r.banned = true
	r.banCount = count
}
