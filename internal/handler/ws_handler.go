package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/middleware"
	"github.com/agep/exam-backend/internal/response"
	"github.com/agep/exam-backend/internal/service"
	ws "github.com/agep/exam-backend/internal/websocket"
)

// WSHandler handles the student's exam stream: autosave, submit and ping
// over one connection.
type WSHandler struct {
	drafts      *service.DraftService
	submissions *service.SubmissionService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	drafts *service.DraftService,
	submissions *service.SubmissionService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		drafts:      drafts,
		submissions: submissions,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    ws.NewUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	id := middleware.GetIdentity(c)
	if !id.Authenticated() {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(ws.MaxMessageBytes)

	wsLog := h.log.With().
		Int("student_id", id.UserID).
		Str("exam_id", examID.String()).
		Logger()
	wsLog.Debug().Msg("Student connected")

	ctx := c.Request.Context()
	for {
		var req ws.Request
		if err := ws.ReadRequest(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch req.Action {
		case ws.ActionAutosave:
			h.handleAutosave(ctx, conn, wsLog, id, examID, req.Answers)
		case ws.ActionSubmit:
			if h.handleSubmit(ctx, conn, wsLog, id, examID, req.Answers) {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "submitted"))
				return
			}
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(req.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, id service.Identity, examID uuid.UUID, answers map[string]any) {
	saved, err := h.drafts.SaveDraft(ctx, id, examID, answers)
	if err != nil {
		log.Warn().Err(err).Msg("Autosave failed")
		_ = ws.WriteError(conn, string(wsErrorCode(err)), "save failed")
		return
	}
	_ = ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, Saved: saved})
}

// handleSubmit reports whether the exam is now closed for this student,
// either by this submission or an earlier one.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, id service.Identity, examID uuid.UUID, answers map[string]any) bool {
	answers, err := answersOrDraft(ctx, h.drafts, id, examID, answers)
	if err != nil {
		code := wsErrorCode(err)
		_ = ws.WriteError(conn, string(code), response.GetMessage(code))
		return false
	}

	result, err := h.submissions.Submit(ctx, id, examID, answers)
	if err != nil {
		code := wsErrorCode(err)
		if code == response.ErrStorage || code == response.ErrInternal {
			log.Error().Err(err).Msg("Submission failed")
		}
		_ = ws.WriteError(conn, string(code), response.GetMessage(code))
		return code == response.ErrAlreadySubmitted
	}

	_ = ws.WriteTyped(conn, ws.ResultResponse{Event: ws.EventResult, SubmissionResult: result})
	return true
}
