package examroom

import (
	"context"
	"fmt"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

// submit ends the attempt. The terminal status is set before any I/O; any
// later trigger finds the room closed and does nothing.
func (r *Room) submit(ctx context.Context, reason model.SubmitReason) {
	if !r.active() {
		return
	}

	now := r.now()
	if reason == model.SubmitExpelled {
		r.status = model.SessionStatusExpelled
	} else {
		r.status = model.SessionStatusCompleted
	}
	r.timer.Stop()
	r.stopWebcam()
	r.tracker.Reset()

	_, end := r.exam.Window()
	r.timeLeft = proctor.SecondsLeft(end, now)
	if reason == model.SubmitTimeUp {
		r.timeLeft = 0
	}

	in := ResultInput{
		StudentID:   r.key.StudentID,
		Reason:      reason,
		TimeLeft:    r.timeLeft,
		StartedAt:   r.state.StartedAt,
		SubmittedAt: now,
	}
	if reason == model.SubmitExpelled {
		in.BanReason = fmt.Sprintf("Reached %d of %d allowed violations", r.banCount, r.opts.Policy.BanLimit)
	}
	result := ComputeResult(r.exam, r.state, in)
	r.result = result

	// Delivery must survive the client going away mid-submit.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.SubmitTimeout)
	defer cancel()

	if err := r.deps.Submitter.Submit(dctx, result); err != nil {
		r.log.Error().Err(err).
			Str("reason", string(reason)).
			Interface("result", result).
			Msg("Failed to deliver submission")
		r.notifier.Error("SUBMISSION_FAILED", fmt.Errorf("submit result: %w", err))
	} else {
		r.log.Info().
			Str("reason", string(reason)).
			Float64("total_marks", result.ResultMetrics.TotalMarks).
			Msg("Exam submitted")
		r.notifier.Submitted(result)
	}

	// The queued result may take a while to land in the database; the
	// marker keeps a reconnect from starting the attempt over meanwhile.
	if err := r.deps.Store.Finish(dctx, r.key, r.status); err != nil {
		r.log.Error().Err(err).Msg("Failed to close session")
	}
	r.dirty = 0
	r.fullscreen.Exit()

	if reason == model.SubmitExpelled {
		r.publish(model.MonitorBanned, "", 0)
	}
	r.publish(model.MonitorSubmitted, string(reason), 0)
	r.flush(dctx)
}
