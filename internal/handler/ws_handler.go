package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/examroom"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// maxMessageBytes bounds one client message; webcam frames are the largest.
const maxMessageBytes = 2 << 20

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler bridges a student's socket and their exam room.
type WSHandler struct {
	sessionService *service.ExamSessionService
	policy         config.ProctorPolicy
	webcam         bool
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, cfg *config.Config, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		policy:         cfg.Proctor,
		webcam:         cfg.FaceDetectorURL != "",
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(cfg.AllowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket and attaches the connection to the student's exam room.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
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

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	studentID := claims.UserID
	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	w := ws.NewWriter(conn)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	_ = w.WriteTyped(ws.ConfigResponse{
		Event:               ws.EventConfig,
		BlockedShortcuts:    proctor.BlockedShortcuts,
		DetectionIntervalMs: h.policy.DetectionInterval.Milliseconds(),
		BanLimit:            h.policy.BanLimit,
		Webcam:              h.webcam,
	})

	var (
		cam     *wsCamera
		roomCam proctor.Camera
	)
	if h.webcam {
		cam = newWSCamera(w, 3*h.policy.DetectionInterval)
		roomCam = cam
	}

	room, err := h.sessionService.OpenRoom(ctx, examID, studentID, &wsNotifier{w: w, log: wsLog}, roomCam)
	if err != nil {
		code := openErrorCode(err)
		if code == response.ErrInternal {
			wsLog.Error().Err(err).Msg("Failed to open exam room")
		}
		_ = w.WriteError(string(code), response.GetMessage(code))
		_ = w.Close(websocket.ClosePolicyViolation, string(code))
		return
	}

	wsLog.Info().Msg("Student connected")

	roomDone := make(chan struct{})
	go func() {
		defer close(roomDone)
		h.sessionService.Run(ctx, room)
	}()

	h.readLoop(ctx, conn, w, room, cam, wsLog)

	// Stop the room and wait until it released the camera.
	cancel()
	<-roomDone
	wsLog.Info().Msg("Student disconnected")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, w *ws.Writer, room *examroom.Room, cam *wsCamera, log zerolog.Logger) {
	for {
		mt, data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			} else {
				log.Debug().Msg("Connection closed")
			}
			return
		}

		if mt == websocket.BinaryMessage {
			if cam != nil {
				cam.push(data)
			}
			continue
		}

		action, ev, err := ws.Decode(data)
		if err != nil {
			code := response.ErrInvalidPayload
			if errors.Is(err, ws.ErrUnknownAction) {
				log.Warn().Str("action", string(action)).Msg("Unknown action")
				code = response.ErrUnknownAction
			}
			_ = w.WriteError(string(code), err.Error())
			continue
		}
		if action == ws.ActionPing {
			_ = w.WriteTyped(ws.PongResponse{Event: ws.EventPong})
			continue
		}

		if err := room.Send(ctx, ev); err != nil {
			log.Debug().Err(err).Msg("Room closed, dropping connection")
			return
		}
	}
}

func openErrorCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return response.ErrNotFound
	case errors.Is(err, service.ErrNoQuestions):
		return response.ErrNoQuestions
	case errors.Is(err, service.ErrNotAllowed):
		return response.ErrNotRegistered
	case errors.Is(err, examroom.ErrAlreadySubmitted):
		return response.ErrAlreadySubmitted
	case errors.Is(err, service.ErrSessionAlreadyActive):
		return response.ErrSessionActive
	default:
		return response.ErrInternal
	}
}

// wsNotifier writes room output to the socket. It runs on the room
// goroutine; write failures surface as a read error on the handler side.
type wsNotifier struct {
	w   *ws.Writer
	log zerolog.Logger
}

func (n *wsNotifier) Fullscreen(enter bool) {
	n.write(ws.FullscreenResponse{Event: ws.EventFullscreen, Enter: enter})
}

func (n *wsNotifier) State(s examroom.Snapshot) {
	n.write(ws.StateResponse{Event: ws.EventState, State: s})
}

func (n *wsNotifier) Submitted(result *model.SubmissionResult) {
	n.write(ws.SubmittedResponse{Event: ws.EventSubmitted, Result: result})
}

func (n *wsNotifier) Error(code string, err error) {
	if code == string(response.ErrInternal) {
		n.log.Error().Err(err).Msg("Room error")
	}
	n.write(ws.ErrorResponse{Event: ws.EventError, Code: code, Error: response.GetMessage(response.ErrCode(code))})
}

func (n *wsNotifier) write(v interface{}) {
	if err := n.w.WriteTyped(v); err != nil {
		n.log.Debug().Err(err).Msg("Write to client failed")
	}
}
