// Package examroom runs one student's exam attempt.
//
// A Room is an actor: Run owns every piece of attempt state and serialises
// the client's events, the 1s clock and the webcam observations through one
// goroutine. Other goroutines talk to it only through Send.
package examroom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

var (
	ErrNotActive        = errors.New("exam is not active")
	ErrNotAwaiting      = errors.New("exam is not awaiting confirmation")
	ErrOutOfRange       = errors.New("question out of range")
	ErrInvalidOption    = errors.New("invalid option")
	ErrClosed           = errors.New("exam room closed")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrNotOpen          = errors.New("exam has not opened yet")
)

// SessionStore persists the resumable part of an attempt. Finish replaces
// it with a terminal marker that Ended reports until the key expires.
type SessionStore interface {
	Load(ctx context.Context, key model.SessionKey) (*model.SessionState, error)
	Save(ctx context.Context, key model.SessionKey, patch model.SessionPatch) error
	Finish(ctx context.Context, key model.SessionKey, status model.SessionStatus) error
	Ended(ctx context.Context, key model.SessionKey) (model.SessionStatus, error)
}

// Submitter delivers the final result.
type Submitter interface {
	Submit(ctx context.Context, result *model.SubmissionResult) error
}

// ViolationLogger records violations for later review.
type ViolationLogger interface {
	LogViolations(ctx context.Context, logs ...model.ViolationLog) error
}

// Publisher fans room events out to the admin monitor.
type Publisher interface {
	Publish(ctx context.Context, ev model.MonitorEvent) error
}

// Notifier pushes room output to the student's client.
type Notifier interface {
	// Fullscreen asks the client to enter or leave fullscreen.
	Fullscreen(enter bool)
	State(s Snapshot)
	Submitted(result *model.SubmissionResult)
	Error(code string, err error)
}

// Snapshot is the full client-visible state of a room.
type Snapshot struct {
	Status           model.SessionStatus         `json:"status"`
	Position         model.QuestionRef           `json:"position"`
	Answers          model.Answers               `json:"answers"`
	ReviewMarked     model.RefSet                `json:"review_marked"`
	Visited          model.RefSet                `json:"visited"`
	TimeLeft         int                         `json:"time_left"`
	Fullscreen       bool                        `json:"fullscreen"`
	Violations       model.ViolationCounters     `json:"violations"`
	Warning          string                      `json:"warning,omitempty"`
	Webcam           model.WebcamViolationStatus `json:"webcam"`
	WebcamCountdown  int                         `json:"webcam_countdown"`
	FaceCount        int                         `json:"face_count"`
	HeadPose         model.HeadPose              `json:"head_pose,omitempty"`
	CameraError      string                      `json:"camera_error,omitempty"`
	CommonViolations int                         `json:"common_violations"`
	BanLimit         int                         `json:"ban_limit"`
	Banned           bool                        `json:"banned"`
}

// Deps are the collaborators of a room. Publisher, Violations, Webcam and
// Camera may be nil.
type Deps struct {
	Store      SessionStore
	Submitter  Submitter
	Violations ViolationLogger
	Publisher  Publisher
	Notifier   Notifier
	Webcam     *proctor.WebcamMonitor
	Camera     proctor.Camera
}

// Options tune a room.
type Options struct {
	Policy        config.ProctorPolicy
	SubmitTimeout time.Duration
	Now           func() time.Time
}

type dirtyField uint8

const (
	dirtyAnswers dirtyField = 1 << iota
	dirtyReview
	dirtyVisited
	dirtyPosition
	dirtyViolations
	dirtyCommon
	dirtyStarted
)

// Room is one student's attempt at one exam.
type Room struct {
	key      model.SessionKey
	exam     *model.Exam
	deps     Deps
	opts     Options
	notifier Notifier
	log      zerolog.Logger

	status     model.SessionStatus
	state      *model.SessionState
	timeLeft   int
	fullscreen *proctor.Fullscreen
	timer      *proctor.Timer
	focus      *proctor.FocusMonitor
	tracker    *proctor.Tracker
	agg        *proctor.Aggregator
	lastObs    proctor.Observation
	cameraErr  string
	result     *model.SubmissionResult

	dirty    dirtyField
	logs     []model.ViolationLog
	events   []model.MonitorEvent
	timeUp   bool
	banned   bool
	banCount int

	inbox        chan Event
	done         chan struct{}
	webcamCancel context.CancelFunc
	wg           sync.WaitGroup
}

// New creates a room in NotStarted. Call Open before Run.
func New(exam *model.Exam, studentID int, deps Deps, opts Options, log zerolog.Logger) *Room {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 10 * time.Second
	}
	if opts.Policy == (config.ProctorPolicy{}) {
		opts.Policy = config.DefaultProctorPolicy()
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	r := &Room{
		key:      model.SessionKey{ExamID: exam.ID, StudentID: studentID},
		exam:     exam,
		deps:     deps,
		opts:     opts,
		notifier: notifier,
		log: log.With().
			Str("component", "exam_room").
			Str("exam_id", exam.ID.String()).
			Int("student_id", studentID).
			Logger(),
		status: model.SessionStatusNotStarted,
		state:  model.NewSessionState(),
		inbox:  make(chan Event, 64),
		done:   make(chan struct{}),
	}

	r.fullscreen = proctor.NewFullscreen(notifier.Fullscreen)
	start, end := exam.Window()
	r.timer = proctor.NewTimer(start, end, func() { r.timeUp = true })
	r.tracker = proctor.NewTracker(
		int(opts.Policy.WarnAfter/time.Second),
		int(opts.Policy.CountAfter/time.Second),
		r.onThreshold,
	)
	return r
}

// Key returns the attempt key.
func (r *Room) Key() model.SessionKey {
	return r.key
}

// Open rehydrates persisted state and moves to AwaitingConfirmation.
func (r *Room) Open(ctx context.Context) error {
	if r.status != model.SessionStatusNotStarted {
		return nil
	}

	ended, err := r.deps.Store.Ended(ctx, r.key)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if ended.Terminal() {
		r.status = ended
		return ErrAlreadySubmitted
	}

	state, err := r.deps.Store.Load(ctx, r.key)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if _, ok := r.exam.Question(state.Position()); !ok {
		// The cursor no longer fits the paper; restart from the top.
		state.CurrentSubject, state.CurrentQuestion = 0, 0
	}
	r.state = state

	r.focus = proctor.NewFocusMonitor(r.fullscreen, state.Violations, r.onFocusViolation)
	r.agg = proctor.NewAggregator(r.opts.Policy.BanLimit, state.CommonViolations, state.Violations.Total, r.onCommonChange, r.onBan)

	start, end := r.exam.Window()
	if now := r.now(); !now.Before(start) {
		r.timeLeft = proctor.SecondsLeft(end, now)
	}

	r.status = model.SessionStatusAwaitingConfirmation
	if !state.Empty() {
		r.log.Info().
			Int("answers", len(state.Answers)).
			Int("common_violations", state.CommonViolations).
			Msg("Session rehydrated")
	}
	r.notifier.State(r.Snapshot())
	return nil
}

// Run drives the room until ctx ends. It releases the camera before
// returning.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	defer r.shutdown()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.inbox:
			r.dispatch(ctx, ev)
		case <-ticker.C:
			r.dispatch(ctx, Tick{At: r.now()})
		}
	}
}

// Send queues an event for the room goroutine.
func (r *Room) Send(ctx context.Context, ev Event) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.inbox <- ev:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run returned.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Status returns the attempt status. Only safe from the room goroutine or
// after Run returned.
func (r *Room) Status() model.SessionStatus {
	return r.status
}

// Result returns the computed result once the attempt ended.
func (r *Room) Result() *model.SubmissionResult {
	return r.result
}

// Snapshot returns the client-visible state.
func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		Status:           r.status,
		Position:         r.state.Position(),
		Answers:          r.state.Answers.Clone(),
		ReviewMarked:     r.state.ReviewMarked.Clone(),
		Visited:          r.state.Visited.Clone(),
		TimeLeft:         r.timeLeft,
		Fullscreen:       r.fullscreen.Active(),
		Violations:       r.state.Violations,
		Webcam:           r.tracker.Status(),
		WebcamCountdown:  r.tracker.SecondsUntilCount(),
		FaceCount:        r.lastObs.FaceCount,
		HeadPose:         r.lastObs.HeadPose,
		CameraError:      r.cameraErr,
		CommonViolations: r.state.CommonViolations,
		BanLimit:         r.opts.Policy.BanLimit,
		Banned:           r.status == model.SessionStatusExpelled,
	}
	if r.focus != nil {
		s.Warning = r.focus.ViolationType()
	}
	return s
}

func (r *Room) now() time.Time {
	return r.opts.Now()
}

func (r *Room) active() bool {
	return r.status == model.SessionStatusActive
}

// dispatch applies one event and settles its side effects.
func (r *Room) dispatch(ctx context.Context, ev Event) {
	if err := ev.apply(ctx, r); err != nil {
		r.notifier.Error(errorCode(err), err)
	}
	r.settle(ctx)
}

// settle persists what changed, flushes logs and monitor events, then runs
// any terminal transition raised while applying the event.
func (r *Room) settle(ctx context.Context) {
	r.flush(ctx)

	switch {
	case r.banned && r.active():
		r.submit(ctx, model.SubmitExpelled)
	case r.timeUp && r.active():
		r.submit(ctx, model.SubmitTimeUp)
	}
	r.notifier.State(r.Snapshot())
}

func (r *Room) flush(ctx context.Context) {
	if r.dirty != 0 && !r.status.Terminal() {
		if err := r.deps.Store.Save(ctx, r.key, r.patch()); err != nil {
			r.log.Error().Err(err).Msg("Failed to persist session")
		}
	}
	r.dirty = 0

	if len(r.logs) > 0 && r.deps.Violations != nil {
		if err := r.deps.Violations.LogViolations(ctx, r.logs...); err != nil {
			r.log.Error().Err(err).Int("count", len(r.logs)).Msg("Failed to log violations")
		}
	}
	r.logs = r.logs[:0]

	if r.deps.Publisher != nil {
		for _, ev := range r.events {
			if err := r.deps.Publisher.Publish(ctx, ev); err != nil {
				r.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("Failed to publish monitor event")
			}
		}
	}
	r.events = r.events[:0]
}

func (r *Room) patch() model.SessionPatch {
	var p model.SessionPatch
	if r.dirty&dirtyAnswers != 0 {
		p.Answers = r.state.Answers.Clone()
	}
	if r.dirty&dirtyReview != 0 {
		p.ReviewMarked = r.state.ReviewMarked.Clone()
	}
	if r.dirty&dirtyVisited != 0 {
		p.Visited = r.state.Visited.Clone()
	}
	if r.dirty&dirtyPosition != 0 {
		cs, cq := r.state.CurrentSubject, r.state.CurrentQuestion
		p.CurrentSubject, p.CurrentQuestion = &cs, &cq
	}
	if r.dirty&dirtyViolations != 0 {
		v := r.state.Violations
		p.Violations = &v
	}
	if r.dirty&dirtyCommon != 0 {
		c := r.state.CommonViolations
		p.CommonViolations = &c
	}
	if r.dirty&dirtyStarted != 0 {
		s := r.state.StartedAt
		p.StartedAt = &s
	}
	return p
}

func (r *Room) publish(typ model.MonitorEventType, violation string, duration int) {
	ev := r.monitorEvent(typ)
	ev.Violation, ev.Duration = violation, duration
	r.events = append(r.events, ev)
}

func (r *Room) monitorEvent(typ model.MonitorEventType) model.MonitorEvent {
	return model.MonitorEvent{
		Type:             typ,
		ExamID:           r.key.ExamID,
		StudentID:        r.key.StudentID,
		CommonViolations: r.state.CommonViolations,
		Timestamp:        r.now(),
	}
}

func (r *Room) startWebcam(ctx context.Context) {
	if !r.deps.Webcam.Ready() || r.deps.Camera == nil || r.webcamCancel != nil {
		return
	}

	wctx, cancel := context.WithCancel(ctx)
	r.webcamCancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		emit := func(o proctor.Observation) {
			select {
			case r.inbox <- observed{obs: o}:
			case <-wctx.Done():
			}
		}
		if err := r.deps.Webcam.Run(wctx, r.deps.Camera, emit); err != nil {
			select {
			case r.inbox <- CameraFailed{Reason: err.Error()}:
			case <-wctx.Done():
			}
		}
	}()
}

func (r *Room) stopWebcam() {
	if r.webcamCancel != nil {
		r.webcamCancel()
		r.webcamCancel = nil
	}
}

func (r *Room) shutdown() {
	r.stopWebcam()
	r.timer.Stop()
	r.wg.Wait()
	r.log.Debug().Str("status", string(r.status)).Msg("Exam room closed")
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotActive), errors.Is(err, ErrNotAwaiting):
		return "EXAM_NOT_ACTIVE"
	case errors.Is(err, ErrNotOpen):
		return "EXAM_NOT_OPEN"
	case errors.Is(err, ErrOutOfRange):
		return "QUESTION_OUT_OF_RANGE"
	case errors.Is(err, ErrInvalidOption):
		return "INVALID_OPTION"
	case errors.Is(err, ErrAlreadySubmitted):
		return "ALREADY_SUBMITTED"
	default:
		return "INTERNAL_ERROR"
	}
}

type nopNotifier struct{}

func (nopNotifier) Fullscreen(bool) {}
func (nopNotifier) State(Snapshot) {}
func (nopNotifier) Submitted(*model.SubmissionResult) {}
func (nopNotifier) Error(string, error) {}
