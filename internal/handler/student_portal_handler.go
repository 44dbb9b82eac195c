package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// StudentPortalHandler handles student-facing REST endpoints around an attempt.
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
	examService    *service.ExamService
	log            zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessionService *service.ExamSessionService,
	examService *service.ExamService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		examService:    examService,
		log:            log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// GetExamState godoc
// GET /api/v1/student/exams/:exam_id/state
// Returns whether the attempt is waiting, running or completed, with the
// persisted answers and remaining time when there are any.
func (h *StudentPortalHandler) GetExamState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	view, err := h.sessionService.State(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// GetExamPaper godoc
// GET /api/v1/student/exams/:exam_id/paper
// Returns the question paper without answer keys.
func (h *StudentPortalHandler) GetExamPaper(c *gin.Context) {
	if middleware.GetClaims(c) == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.examService.GetPaper(c.Request.Context(), examID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

func (h *StudentPortalHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrNotAllowed):
		response.Fail(c, http.StatusForbidden, response.ErrNotRegistered)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Student portal request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
