package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
)

type stubExams struct{ exam *model.Exam }

func (s stubExams) GetExam(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	if id != s.exam.ID {
		return nil, service.ErrExamNotFound
	}
	return s.exam, nil
}

type stubRegistrations struct{}

func (stubRegistrations) Verify(_ context.Context, _ uuid.UUID, studentID int) (*model.Registration, error) {
	if studentID != 1 {
		return nil, service.ErrNotAllowed
	}
	return &model.Registration{Allowed: true}, nil
}

type recordingSubmitter struct {
	mu      sync.Mutex
	results []*model.SubmissionResult
}

func (r *recordingSubmitter) Submit(_ context.Context, res *model.SubmissionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

func (r *recordingSubmitter) Exists(_ context.Context, _ uuid.UUID, studentID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if res.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func wsTestExam() *model.Exam {
	start := time.Now().Add(-time.Minute)
	q := func(correct int) model.Question {
		return model.Question{ID: uuid.New(), Options: []string{"a", "b", "c", "d"}, CorrectOption: correct, Marks: 4, NegativeMarks: 1}
	}
	return &model.Exam{
		ID:              uuid.New(),
		Title:           "Chemistry",
		DurationMinutes: 60,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Subjects:        []model.Subject{{Name: "Organic", Questions: []model.Question{q(1), q(2)}}},
	}
}

func newWSServer(t *testing.T) (*httptest.Server, *model.Exam, *recordingSubmitter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	exam := wsTestExam()
	sub := &recordingSubmitter{}
	cfg := &config.Config{Proctor: config.DefaultProctorPolicy(), SubmitTimeout: time.Second}
	svc := service.NewExamSessionService(service.ExamSessionDeps{
		Exams:         stubExams{exam: exam},
		Registrations: stubRegistrations{},
		Submissions:   sub,
		Store:         repository.NewMemorySessionStore(),
		Submitter:     sub,
	}, cfg, zerolog.Nop())
	h := NewWSHandler(svc, cfg, zerolog.Nop())

	r := gin.New()
	r.GET("/ws/:student/:exam_id", func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("student"))
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeStudent, UserID: id})
		c.Next()
	}, h.ExamWebSocketStream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, exam, sub
}

func dial(t *testing.T, srv *httptest.Server, student string, examID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + student + "/" + examID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads events until one named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) map[string]json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg map[string]json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", event, err)
		}
		var got string
		_ = json.Unmarshal(msg["event"], &got)
		if got == event {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, v string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(v)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWSExamFlowSubmitsOnce(t *testing.T) {
	srv, exam, sub := newWSServer(t)
	conn := dial(t, srv, "1", exam.ID)

	readUntil(t, conn, "config")
	readUntil(t, conn, "state")

	send(t, conn, `{"action":"confirm"}`)
	fs := readUntil(t, conn, "fullscreen")
	if string(fs["enter"]) != "true" {
		t.Fatalf("expected fullscreen enter, got %s", fs["enter"])
	}

	send(t, conn, `{"action":"answer","subject":0,"question":0,"option":1}`)
	send(t, conn, `{"action":"ping"}`)
	readUntil(t, conn, "pong")

	send(t, conn, `{"action":"submit"}`)
	msg := readUntil(t, conn, "submitted")
	var result model.SubmissionResult
	if err := json.Unmarshal(msg["result"], &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ResultMetrics.TotalMarks != 4 || result.QuestionStats.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result.ResultMetrics)
	}

	send(t, conn, `{"action":"submit"}`)
	send(t, conn, `{"action":"ping"}`)
	readUntil(t, conn, "pong")

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.results) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(sub.results))
	}
}

func TestWSRejectsBadMessages(t *testing.T) {
	srv, exam, _ := newWSServer(t)
	conn := dial(t, srv, "1", exam.ID)
	readUntil(t, conn, "state")

	send(t, conn, `{"action":"teleport"}`)
	msg := readUntil(t, conn, "error")
	if string(msg["code"]) != `"UNKNOWN_ACTION"` {
		t.Fatalf("expected UNKNOWN_ACTION, got %s", msg["code"])
	}

	send(t, conn, `{"action":"answer","subject":0,"question":0,"option":1}`)
	msg = readUntil(t, conn, "error")
	if string(msg["code"]) != `"EXAM_NOT_ACTIVE"` {
		t.Fatalf("expected EXAM_NOT_ACTIVE before confirm, got %s", msg["code"])
	}
}

func TestWSRejectsUnregisteredStudent(t *testing.T) {
	srv, exam, _ := newWSServer(t)
	conn := dial(t, srv, "7", exam.ID)

	msg := readUntil(t, conn, "error")
	if string(msg["code"]) != `"NOT_REGISTERED"` {
		t.Fatalf("expected NOT_REGISTERED, got %s", msg["code"])
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}
