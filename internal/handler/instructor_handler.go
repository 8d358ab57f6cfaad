package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/middleware"
	"github.com/agep/exam-backend/internal/model"
	"github.com/agep/exam-backend/internal/response"
	"github.com/agep/exam-backend/internal/service"
	"github.com/agep/exam-backend/internal/validator"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// InstructorHandler serves exam authoring and reporting.
type InstructorHandler struct {
	exams   *service.ExamService
	reports *service.ReportService
	log     zerolog.Logger
}

// NewInstructorHandler creates a new InstructorHandler.
func NewInstructorHandler(exams *service.ExamService, reports *service.ReportService, log zerolog.Logger) *InstructorHandler {
	return &InstructorHandler{
		exams:   exams,
		reports: reports,
		log:     log.With().Str("component", "instructor_handler").Logger(),
	}
}

// ─── Authoring ─────────────────────────────────────────────────────────────

// ListExams godoc
// GET /api/v1/instructor/exams?page=1&per_page=10
func (h *InstructorHandler) ListExams(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.exams.List(c.Request.Context(), middleware.GetIdentity(c), page, perPage)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, exams, pagination)
}

// GetExam godoc
// GET /api/v1/instructor/exams/:id
func (h *InstructorHandler) GetExam(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	exam, err := h.exams.Get(c.Request.Context(), middleware.GetIdentity(c), examID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// CreateExam godoc
// POST /api/v1/instructor/exams
func (h *InstructorHandler) CreateExam(c *gin.Context) {
	var req model.SaveExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Create(c.Request.Context(), middleware.GetIdentity(c), &req)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, exam)
}

// UpdateExam godoc
// PUT /api/v1/instructor/exams/:id
func (h *InstructorHandler) UpdateExam(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.SaveExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Update(c.Request.Context(), middleware.GetIdentity(c), examID, &req)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// DeleteExam godoc
// DELETE /api/v1/instructor/exams/:id
// Removes the exam together with every recorded attempt.
func (h *InstructorHandler) DeleteExam(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.exams.Delete(c.Request.Context(), middleware.GetIdentity(c), examID); err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": examID})
}

// ─── Reporting ─────────────────────────────────────────────────────────────

// GetReport godoc
// GET /api/v1/instructor/exams/:id/report
func (h *InstructorHandler) GetReport(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	report, err := h.reports.ExamReport(c.Request.Context(), middleware.GetIdentity(c), examID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// Export godoc
// GET /api/v1/instructor/exams/:id/export?type=results|analysis&format=csv|xlsx
// The xlsx workbook always carries both sheets, so type only applies to csv.
func (h *InstructorHandler) Export(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	kind := c.DefaultQuery("type", "results")
	format := c.DefaultQuery("format", "csv")

	type exportFunc func(ctx context.Context, id service.Identity, examID uuid.UUID, w io.Writer) error
	var (
		export      exportFunc
		contentType string
		filename    string
	)
	switch {
	case format == "xlsx":
		export, contentType, filename = h.reports.ExportXLSX, contentTypeXLSX, "exam-"+examID.String()+".xlsx"
	case format == "csv" && kind == "results":
		export, contentType, filename = h.reports.ExportResultsCSV, contentTypeCSV, "exam-"+examID.String()+"-results.csv"
	case format == "csv" && kind == "analysis":
		export, contentType, filename = h.reports.ExportAnalysisCSV, contentTypeCSV, "exam-"+examID.String()+"-analysis.csv"
	default:
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"type":   "type must be one of results or analysis",
			"format": "format must be one of csv or xlsx",
		})
		return
	}

	// Buffer so a failure halfway through still gets a proper error envelope.
	var buf bytes.Buffer
	if err := export(c.Request.Context(), middleware.GetIdentity(c), examID, &buf); err != nil {
		failService(c, h.log, err)
		return
	}
	response.Attachment(c, filename, contentType, buf.Bytes())
}

// GetAttempt godoc
// GET /api/v1/instructor/attempts/:attempt_id
func (h *InstructorHandler) GetAttempt(c *gin.Context) {
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
