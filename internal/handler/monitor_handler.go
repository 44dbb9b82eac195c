package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	rdb            *redis.Client
	examService    *service.ExamService
	monitorService *service.MonitorService
	log            zerolog.Logger

	refreshEvery   time.Duration
	keepAliveEvery time.Duration
}

func NewMonitorHandler(
	rdb *redis.Client,
	examService *service.ExamService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		examService:    examService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		refreshEvery:   refreshInterval,
		keepAliveEvery: keepAliveInterval,
	}
}

type monitorExam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration"`
	TotalQuestions  int       `json:"total_questions"`
}

type monitorMessage struct {
	Type     string                   `json:"type"`
	Exam     *monitorExam             `json:"exam,omitempty"`
	Snapshot *service.MonitorSnapshot `json:"data,omitempty"`
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
// Streams a violation snapshot, then live room events from Redis Pub/Sub,
// with periodic refreshed snapshots while students are active.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()
	exam, err := h.examService.GetExam(reqCtx, examID)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Failed to load exam for monitor")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// Subscribe before the snapshot so no event falls between the two.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel(examID.String()))
	defer pubsub.Close()
	if _, err := pubsub.Receive(reqCtx); err != nil {
		h.log.Error().Err(err).Msg("Monitor subscription failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	hasStudents := h.sendSnapshot(c, reqCtx, examID, &monitorExam{
		ID:              exam.ID,
		Title:           exam.Title,
		DurationMinutes: exam.DurationMinutes,
		TotalQuestions:  exam.TotalQuestions(),
	})

	keepAliveTicker := time.NewTicker(h.keepAliveEvery)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(h.refreshEvery)
	defer refreshTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Room events are already JSON; forward them untouched.
			c.Render(-1, rawSSE{data: msg.Payload})
			c.Writer.Flush()
			hasStudents = true

		case <-refreshTicker.C:
			if !hasStudents {
				continue
			}
			h.sendSnapshot(c, reqCtx, examID, nil)

		case <-keepAliveTicker.C:
			c.SSEvent("message", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

// sendSnapshot writes the current snapshot and reports whether any
// student has shown up yet. The first snapshot carries the exam header.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, examID uuid.UUID, exam *monitorExam) bool {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	msgType := "refresh"
	if exam != nil {
		msgType = "snapshot"
	}

	snap, err := h.monitorService.GetSnapshot(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to build monitor snapshot")
		if exam == nil {
			return true
		}
		snap = &service.MonitorSnapshot{Students: []model.StudentViolationSummary{}}
	}

	c.SSEvent("message", monitorMessage{Type: msgType, Exam: exam, Snapshot: snap})
	c.Writer.Flush()
	return len(snap.Students) > 0
}

// rawSSE renders a pre-encoded payload as one SSE data frame.
type rawSSE struct{ data string }

func (r rawSSE) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	_, err := w.Write([]byte("data: " + r.data + "\n\n"))
	return err
}

func (r rawSSE) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
}
