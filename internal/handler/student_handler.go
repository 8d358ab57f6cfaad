package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/middleware"
	"github.com/agep/exam-backend/internal/model"
	"github.com/agep/exam-backend/internal/response"
	"github.com/agep/exam-backend/internal/service"
)

// StudentHandler serves the exam-taking endpoints.
type StudentHandler struct {
	sessions    *service.ExamSessionService
	drafts      *service.DraftService
	submissions *service.SubmissionService
	reports     *service.ReportService
	log         zerolog.Logger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(
	sessions *service.ExamSessionService,
	drafts *service.DraftService,
	submissions *service.SubmissionService,
	reports *service.ReportService,
	log zerolog.Logger,
) *StudentHandler {
	return &StudentHandler{
		sessions:    sessions,
		drafts:      drafts,
		submissions: submissions,
		reports:     reports,
		log:         log.With().Str("component", "student_handler").Logger(),
	}
}

// GetLobby godoc
// GET /api/v1/student/lobby
func (h *StudentHandler) GetLobby(c *gin.Context) {
	lobby, err := h.sessions.Lobby(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, lobby)
}

// OpenSession godoc
// GET /api/v1/student/exams/:exam_id/session
// Starts the timer on first call and restores paper, draft and timer after
// a reload.
func (h *StudentHandler) OpenSession(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}

	state, err := h.sessions.Open(c.Request.Context(), middleware.GetIdentity(c), examID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SaveDraft godoc
// PUT /api/v1/student/exams/:exam_id/draft
func (h *StudentHandler) SaveDraft(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	saved, err := h.drafts.SaveDraft(c.Request.Context(), middleware.GetIdentity(c), examID, req.Answers)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": saved})
}

// Submit godoc
// POST /api/v1/student/exams/:exam_id/submit
func (h *StudentHandler) Submit(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	ctx := c.Request.Context()
	id := middleware.GetIdentity(c)
	answers, err := answersOrDraft(ctx, h.drafts, id, examID, req.Answers)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	result, err := h.submissions.Submit(ctx, id, examID, answers)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
func (h *StudentHandler) GetAttempt(c *gin.Context) {
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	sheet, err := h.reports.ResultSheet(c.Request.Context(), middleware.GetIdentity(c), attemptID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, sheet)
}

// answersOrDraft falls back to the autosaved sheet when a submission carries
// no answers field at all. An explicit empty object is submitted as is.
func answersOrDraft(ctx context.Context, drafts *service.DraftService, id service.Identity, examID uuid.UUID, answers map[string]any) (map[string]any, error) {
	if answers != nil || !id.Authenticated() {
		return answers, nil
	}
	draft, err := drafts.GetDraft(ctx, id.UserID, examID)
	if err != nil {
		return nil, err
	}
	return draft.Raw(), nil
}
