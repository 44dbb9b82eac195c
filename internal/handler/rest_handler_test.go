package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
)

type repoExams struct{ exam *model.Exam }

func (r repoExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	if id != r.exam.ID {
		return nil, repository.ErrNotFound
	}
	return r.exam, nil
}

func (r repoExams) ListOpenIDs(context.Context, time.Time) ([]uuid.UUID, error) {
	return []uuid.UUID{r.exam.ID}, nil
}

type stubMonitorRepo struct{}

func (stubMonitorRepo) GetViolationCounts(context.Context, uuid.UUID) (map[int]*model.StudentViolationSummary, error) {
	return map[int]*model.StudentViolationSummary{
		1: {StudentID: 1, Total: 3, ByType: map[string]int{"face_missing": 3}},
	}, nil
}

func (stubMonitorRepo) GetSubmissionReasons(context.Context, uuid.UUID) (map[int]model.SubmitReason, error) {
	return map[int]model.SubmitReason{}, nil
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func asStudent(id int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeStudent, UserID: id})
		c.Next()
	}
}

func TestStudentPortalStateAndPaper(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exam := wsTestExam()
	rdb := newRedis(t)

	examService := service.NewExamService(repoExams{exam: exam}, rdb, zerolog.Nop())
	cfg := &config.Config{Proctor: config.DefaultProctorPolicy(), SubmitTimeout: time.Second}
	sessions := service.NewExamSessionService(service.ExamSessionDeps{
		Exams:         examService,
		Registrations: stubRegistrations{},
		Submissions:   &recordingSubmitter{},
		Store:         repository.NewMemorySessionStore(),
	}, cfg, zerolog.Nop())
	h := NewStudentPortalHandler(sessions, examService, zerolog.Nop())

	r := gin.New()
	r.GET("/exams/:exam_id/state", asStudent(1), h.GetExamState)
	r.GET("/exams/:exam_id/paper", asStudent(1), h.GetExamPaper)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exams/"+exam.ID.String()+"/state", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var state struct {
		Data model.ExamStateView `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Data.Status != model.SessionStatusNotStarted || state.Data.TimeLeftSeconds <= 0 {
		t.Fatalf("unexpected state: %+v", state.Data)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exams/"+exam.ID.String()+"/paper", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("paper: expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "correct_option") {
		t.Fatal("paper must not leak the answer key")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exams/"+uuid.NewString()+"/paper", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown exam: expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exams/nope/state", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", w.Code)
	}
}

func TestMonitorStreamsSnapshotThenEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exam := wsTestExam()
	rdb := newRedis(t)

	examService := service.NewExamService(repoExams{exam: exam}, rdb, zerolog.Nop())
	h := NewMonitorHandler(rdb, examService, service.NewMonitorService(stubMonitorRepo{}), zerolog.Nop())

	r := gin.New()
	r.GET("/exams/:id/monitor", h.MonitorExamSSE)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/exams/"+exam.ID.String()+"/monitor", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "data:") {
				lines <- sc.Text()
			}
		}
		close(lines)
	}()
	next := func() string {
		select {
		case l, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			return l
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for event")
		}
		return ""
	}

	snap := next()
	if !strings.Contains(snap, `"type":"snapshot"`) || !strings.Contains(snap, `"total_violations":3`) {
		t.Fatalf("unexpected snapshot: %s", snap)
	}

	pub := service.NewRedisPublisher(rdb)
	if err := pub.Publish(ctx, model.MonitorEvent{Type: model.MonitorViolation, ExamID: exam.ID, StudentID: 1, Violation: "tab_switch"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ev := next(); !strings.Contains(ev, `"violation":"tab_switch"`) {
		t.Fatalf("expected forwarded event, got %s", ev)
	}
}

func TestHealthReadyReportsFailingStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &HealthHandler{checks: map[string]healthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return context.DeadlineExceeded },
	}}
	r := gin.New()
	r.GET("/health/ready", h.Ready)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"postgres":"ok"`) {
		t.Fatalf("expected per-store status, got %s", w.Body.String())
	}
}
