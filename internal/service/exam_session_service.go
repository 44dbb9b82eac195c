package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/examroom"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

// ErrSessionAlreadyActive is returned when the attempt is already open on
// another connection.
var ErrSessionAlreadyActive = errors.New("exam is already open in another window")

type examProvider interface {
	GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
}

type registrationVerifier interface {
	Verify(ctx context.Context, examID uuid.UUID, studentID int) (*model.Registration, error)
}

type submissionChecker interface {
	Exists(ctx context.Context, examID uuid.UUID, studentID int) (bool, error)
}

type referenceLoader interface {
	Load(ctx context.Context, images map[model.HeadPose]string) (map[model.HeadPose]model.Embedding, error)
}

// ExamSessionDeps are the collaborators of ExamSessionService. Publisher,
// Violations, Detector and References may be nil.
type ExamSessionDeps struct {
	Exams         examProvider
	Registrations registrationVerifier
	Submissions   submissionChecker
	Store         examroom.SessionStore
	Submitter     examroom.Submitter
	Violations    examroom.ViolationLogger
	Publisher     examroom.Publisher
	Detector      proctor.FaceDetector
	References    referenceLoader
}

// ExamSessionService opens exam rooms and keeps at most one live room per
// attempt.
type ExamSessionService struct {
	deps   ExamSessionDeps
	policy config.ProctorPolicy
	submit time.Duration
	now    func() time.Time
	log    zerolog.Logger

	mu    sync.Mutex
	rooms map[model.SessionKey]*examroom.Room
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(deps ExamSessionDeps, cfg *config.Config, log zerolog.Logger) *ExamSessionService {
	return &ExamSessionService{
		deps:   deps,
		policy: cfg.Proctor,
		submit: cfg.SubmitTimeout,
		now:    time.Now,
		log:    log.With().Str("component", "exam_session_service").Logger(),
		rooms:  make(map[model.SessionKey]*examroom.Room),
	}
}

// OpenRoom runs the pre-exam checks and returns a room in
// AwaitingConfirmation. The caller must pass it to Run. cam may be nil, in
// which case the webcam monitor is not started.
func (s *ExamSessionService) OpenRoom(ctx context.Context, examID uuid.UUID, studentID int, notifier examroom.Notifier, cam proctor.Camera) (*examroom.Room, error) {
	exam, err := s.deps.Exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	reg, err := s.deps.Registrations.Verify(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	key := model.SessionKey{ExamID: examID, StudentID: studentID}
	ended, err := s.ended(ctx, key)
	if err != nil {
		return nil, err
	}
	if ended != "" {
		return nil, examroom.ErrAlreadySubmitted
	}

	if !s.reserve(key) {
		return nil, ErrSessionAlreadyActive
	}

	roomLog := s.log.With().Str("exam_id", examID.String()).Int("student_id", studentID).Logger()

	var webcam *proctor.WebcamMonitor
	if s.deps.Detector != nil && cam != nil {
		webcam = proctor.NewWebcamMonitor(s.deps.Detector, s.loadReferences(ctx, reg, roomLog), proctor.WebcamConfig{
			Interval:       s.policy.DetectionInterval,
			MatchThreshold: s.policy.FaceMatchThreshold,
			Pose: proctor.PoseThresholds{
				Yaw:   s.policy.HeadYawThreshold,
				Pitch: s.policy.HeadPitchThreshold,
			},
		}, s.log)
	}

	room := examroom.New(exam, studentID, examroom.Deps{
		Store:      s.deps.Store,
		Submitter:  s.deps.Submitter,
		Violations: s.deps.Violations,
		Publisher:  s.deps.Publisher,
		Notifier:   notifier,
		Webcam:     webcam,
		Camera:     cam,
	}, examroom.Options{
		Policy:        s.policy,
		SubmitTimeout: s.submit,
		Now:           s.now,
	}, s.log)

	if err := room.Open(ctx); err != nil {
		s.release(key)
		return nil, err
	}

	s.mu.Lock()
	s.rooms[key] = room
	s.mu.Unlock()

	roomLog.Info().Bool("webcam", webcam.Ready()).Msg("Exam room opened")
	return room, nil
}

// Run drives room until ctx ends, then frees the attempt for a new
// connection.
func (s *ExamSessionService) Run(ctx context.Context, room *examroom.Room) {
	defer s.release(room.Key())
	room.Run(ctx)
}

// Active reports whether the attempt has a live room.
func (s *ExamSessionService) Active(examID uuid.UUID, studentID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[model.SessionKey{ExamID: examID, StudentID: studentID}]
	return ok
}

// State returns the persisted attempt for a reloading client. Time left is
// derived from the exam window, never from stored counters.
func (s *ExamSessionService) State(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamStateView, error) {
	exam, err := s.deps.Exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	view := &model.ExamStateView{ExamID: examID, StudentID: studentID}
	key := model.SessionKey{ExamID: examID, StudentID: studentID}

	ended, err := s.ended(ctx, key)
	if err != nil {
		return nil, err
	}
	if ended != "" {
		view.Status = ended
		return view, nil
	}

	state, err := s.deps.Store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	view.State = state

	switch {
	case s.Active(examID, studentID):
		view.Status = model.SessionStatusActive
	case state.Empty():
		view.Status = model.SessionStatusNotStarted
	default:
		view.Status = model.SessionStatusAwaitingConfirmation
	}

	start, end := exam.Window()
	now := s.now()
	if now.Before(start) {
		now = start
	}
	view.TimeLeftSeconds = proctor.SecondsLeft(end, now)
	return view, nil
}

// ended reports how the attempt finished, or "" while it can still run. The
// store marker covers the gap before the queued submission is written.
func (s *ExamSessionService) ended(ctx context.Context, key model.SessionKey) (model.SessionStatus, error) {
	status, err := s.deps.Store.Ended(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check session end: %w", err)
	}
	if status.Terminal() {
		return status, nil
	}

	submitted, err := s.deps.Submissions.Exists(ctx, key.ExamID, key.StudentID)
	if err != nil {
		return "", fmt.Errorf("check submission: %w", err)
	}
	if submitted {
		return model.SessionStatusCompleted, nil
	}
	return "", nil
}

func (s *ExamSessionService) loadReferences(ctx context.Context, reg *model.Registration, log zerolog.Logger) map[model.HeadPose]model.Embedding {
	if s.deps.References == nil || len(reg.ReferenceImages) == 0 {
		log.Warn().Msg("No reference images, identity check disabled")
		return nil
	}
	refs, err := s.deps.References.Load(ctx, reg.ReferenceImages)
	if err != nil {
		log.Warn().Err(err).Msg("Reference images unusable, identity check disabled")
		return nil
	}
	return refs
}

func (s *ExamSessionService) reserve(key model.SessionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[key]; ok {
		return false
	}
	// Placeholder until the room is built.
	s.rooms[key] = nil
	return true
}

func (s *ExamSessionService) release(key model.SessionKey) {
	s.mu.Lock()
	delete(s.rooms, key)
	s.mu.Unlock()
}
