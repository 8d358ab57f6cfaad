package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/kvstore"
	"github.com/agep/exam-backend/internal/middleware"
	"github.com/agep/exam-backend/internal/service"
)

const keepAliveInterval = 30 * time.Second

// FeedHandler streams live submission events to the exam's author.
type FeedHandler struct {
	exams     *service.ExamService
	broker    kvstore.Broker
	keepAlive time.Duration
	log       zerolog.Logger
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(exams *service.ExamService, broker kvstore.Broker, log zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		exams:     exams,
		broker:    broker,
		keepAlive: keepAliveInterval,
		log:       log.With().Str("component", "feed_handler").Logger(),
	}
}

// SubmissionFeedSSE godoc
// GET /api/v1/instructor/exams/:id/feed
// Sends a snapshot event, then one event per submission until the client
// goes away.
func (h *FeedHandler) SubmissionFeedSSE(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	id := middleware.GetIdentity(c)
	exam, err := h.exams.Owned(c.Request.Context(), id, examID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	reqCtx := c.Request.Context()

	// Subscribe before the snapshot goes out so nothing falls in between.
	events, unsubscribe := h.broker.Subscribe(reqCtx, config.CacheKey.ExamSubmissionsChannel(examID.String()))
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("message", gin.H{"type": "snapshot", "exam": exam.Summary()})
	c.Writer.Flush()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	log := h.log.With().Str("exam_id", examID.String()).Int("viewer_id", id.UserID).Logger()
	log.Info().Msg("Instructor attached to submission feed")

	for {
		select {
		case <-reqCtx.Done():
			log.Info().Msg("Instructor detached from submission feed")
			return

		case msg, ok := <-events:
			if !ok {
				log.Warn().Msg("Submission feed subscription closed")
				return
			}
			// Payloads are already JSON; forward them untouched.
			_, _ = c.Writer.WriteString("data: " + msg + "\n\n")
			c.Writer.Flush()

		case <-keepAlive.C:
			_, _ = c.Writer.WriteString("data: {\"type\":\"ping\"}\n\n")
			c.Writer.Flush()
		}
	}
}
