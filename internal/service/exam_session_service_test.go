package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/examroom"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

type staticExams map[uuid.UUID]*model.Exam

func (s staticExams) GetExam(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := s[id]
	if !ok {
		return nil, ErrExamNotFound
	}
	return e, nil
}

type fakeRegistrations struct {
	regs map[int]*model.Registration
}

func (f fakeRegistrations) Get(_ context.Context, _ uuid.UUID, studentID int) (*model.Registration, error) {
	reg, ok := f.regs[studentID]
	if !ok {
		return nil, repository.ErrNotRegistered
	}
	return reg, nil
}

type fakeSubmissions struct {
	mu   sync.Mutex
	done map[int]bool
}

func (f *fakeSubmissions) Exists(_ context.Context, _ uuid.UUID, studentID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done[studentID], nil
}

func (f *fakeSubmissions) Submit(_ context.Context, res *model.SubmissionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done[res.StudentID] = true
	return nil
}

type sessionHarness struct {
	svc   *ExamSessionService
	exam  *model.Exam
	store *repository.MemorySessionStore
	subs  *fakeSubmissions
}

func newSessionHarness(t *testing.T) *sessionHarness {
	t.Helper()
	exam := sampleExam()
	store := repository.NewMemorySessionStore()
	subs := &fakeSubmissions{done: map[int]bool{}}
	regs := fakeRegistrations{regs: map[int]*model.Registration{
		1: {Allowed: true},
		2: {Allowed: false},
		3: {Allowed: true},
	}}
	cfg := &config.Config{Proctor: config.DefaultProctorPolicy(), SubmitTimeout: time.Second}

	svc := NewExamSessionService(ExamSessionDeps{
		Exams:         staticExams{exam.ID: exam},
		Registrations: NewRegistrationService(regs, zerolog.Nop()),
		Submissions:   subs,
		Store:         store,
		Submitter:     subs,
	}, cfg, zerolog.Nop())
	return &sessionHarness{svc: svc, exam: exam, store: store, subs: subs}
}

func TestOpenRoomRejectsUnregisteredAndBlocked(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()

	if _, err := h.svc.OpenRoom(ctx, h.exam.ID, 99, nil, nil); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("unregistered: expected ErrNotAllowed, got %v", err)
	}
	if _, err := h.svc.OpenRoom(ctx, h.exam.ID, 2, nil, nil); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("blocked: expected ErrNotAllowed, got %v", err)
	}
	if _, err := h.svc.OpenRoom(ctx, uuid.New(), 1, nil, nil); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("unknown exam: expected ErrExamNotFound, got %v", err)
	}
}

func TestOpenRoomRejectsSubmittedAttempt(t *testing.T) {
	h := newSessionHarness(t)
	h.subs.done[3] = true

	if _, err := h.svc.OpenRoom(context.Background(), h.exam.ID, 3, nil, nil); !errors.Is(err, examroom.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestOpenRoomOnePerAttempt(t *testing.T) {
	h := newSessionHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room, err := h.svc.OpenRoom(ctx, h.exam.ID, 1, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if room.Status() != model.SessionStatusAwaitingConfirmation {
		t.Fatalf("expected AwaitingConfirmation, got %s", room.Status())
	}

	if _, err := h.svc.OpenRoom(ctx, h.exam.ID, 1, nil, nil); !errors.Is(err, ErrSessionAlreadyActive) {
		t.Fatalf("expected ErrSessionAlreadyActive, got %v", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	finished := make(chan struct{})
	go func() {
		h.svc.Run(runCtx, room)
		close(finished)
	}()
	stop()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("room did not stop")
	}

	if h.svc.Active(h.exam.ID, 1) {
		t.Fatalf("attempt still registered after the room stopped")
	}
	if _, err := h.svc.OpenRoom(ctx, h.exam.ID, 1, nil, nil); err != nil {
		t.Fatalf("reopen after disconnect: %v", err)
	}
}

func TestStateReflectsPersistedAttempt(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	now := h.exam.StartTime.Add(15 * time.Minute)
	h.svc.now = func() time.Time { return now }

	view, err := h.svc.State(ctx, h.exam.ID, 1)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if view.Status != model.SessionStatusNotStarted || view.TimeLeftSeconds != 45*60 {
		t.Fatalf("unexpected fresh view: %+v", view)
	}

	key := model.SessionKey{ExamID: h.exam.ID, StudentID: 1}
	st := model.NewSessionState()
	st.Answers[model.QuestionRef{Subject: 0, Question: 1}] = 3
	if err := h.store.Save(ctx, key, model.FullPatch(st)); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	view, err = h.svc.State(ctx, h.exam.ID, 1)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if view.Status != model.SessionStatusAwaitingConfirmation || view.State.Answers[model.QuestionRef{Subject: 0, Question: 1}] != 3 {
		t.Fatalf("unexpected resumed view: %+v", view)
	}

	h.subs.done[1] = true
	view, err = h.svc.State(ctx, h.exam.ID, 1)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if view.Status != model.SessionStatusCompleted || view.State != nil {
		t.Fatalf("expected completed view, got %+v", view)
	}
}

// queuedSubmitter accepts results without making them visible to Exists,
// like the Redis queue before the worker drains it.
type queuedSubmitter struct {
	mu      sync.Mutex
	results []*model.SubmissionResult
}

func (q *queuedSubmitter) Submit(_ context.Context, res *model.SubmissionResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results = append(q.results, res)
	return nil
}

func (q *queuedSubmitter) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.results)
}

func TestReopenBeforeQueuedSubmissionLands(t *testing.T) {
	h := newSessionHarness(t)
	queue := &queuedSubmitter{}
	h.svc.deps.Submitter = queue
	ctx := context.Background()

	room, err := h.svc.OpenRoom(ctx, h.exam.ID, 1, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	runCtx, stop := context.WithCancel(ctx)
	finished := make(chan struct{})
	go func() {
		h.svc.Run(runCtx, room)
		close(finished)
	}()

	for _, ev := range []examroom.Event{examroom.Confirm{}, examroom.Submit{}} {
		if err := room.Send(ctx, ev); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for queue.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("submission never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}
	stop()
	<-finished

	if done, _ := h.subs.Exists(ctx, h.exam.ID, 1); done {
		t.Fatalf("queued result must not be visible yet")
	}
	if _, err := h.svc.OpenRoom(ctx, h.exam.ID, 1, nil, nil); !errors.Is(err, examroom.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted while the result is queued, got %v", err)
	}

	view, err := h.svc.State(ctx, h.exam.ID, 1)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if view.Status != model.SessionStatusCompleted || view.State != nil {
		t.Fatalf("expected completed view, got %+v", view)
	}
}

func TestStateReportsExpelledAttempt(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	key := model.SessionKey{ExamID: h.exam.ID, StudentID: 1}
	if err := h.store.Finish(ctx, key, model.SessionStatusExpelled); err != nil {
		t.Fatalf("finish: %v", err)
	}

	view, err := h.svc.State(ctx, h.exam.ID, 1)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if view.Status != model.SessionStatusExpelled {
		t.Fatalf("expected EXPELLED, got %s", view.Status)
	}
	if _, err := h.svc.OpenRoom(ctx, h.exam.ID, 1, nil, nil); !errors.Is(err, examroom.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}
