package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/response"
	"github.com/agep/exam-backend/internal/service"
)

// submitRetryAfter is the hint sent when another submission for the same
// student and exam holds the lock. Scoring finishes well within it.
const submitRetryAfter = 2 * time.Second

// failService maps a service error onto the response envelope. Unknown and
// storage errors are logged; domain errors are expected and are not.
func failService(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, service.ErrOperationInProgress):
		response.FailRetryAfter(c, http.StatusConflict, response.ErrOperationInProgress, submitRetryAfter)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrExamForbidden)
	case errors.Is(err, service.ErrNotExamAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotExamAuthor)
	case errors.Is(err, service.ErrInstructorOnly):
		response.Fail(c, http.StatusForbidden, response.ErrInstructorOnly)
	case errors.Is(err, service.ErrAttemptNotVisible):
		response.Fail(c, http.StatusForbidden, response.ErrAttemptNotVisible)
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrStorage):
		log.Error().Err(err).Str("request_id", response.RequestID(c)).Str("path", c.FullPath()).Msg("Storage failure")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorage)
	default:
		log.Error().Err(err).Str("request_id", response.RequestID(c)).Str("path", c.FullPath()).Msg("Unhandled error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// wsErrorCode is failService for the websocket stream, which has no status
// line to carry the distinction.
func wsErrorCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return response.ErrTokenRequired
	case errors.Is(err, service.ErrAlreadySubmitted):
		return response.ErrAlreadySubmitted
	case errors.Is(err, service.ErrOperationInProgress):
		return response.ErrOperationInProgress
	case errors.Is(err, service.ErrForbidden):
		return response.ErrExamForbidden
	case errors.Is(err, service.ErrNotFound):
		return response.ErrNotFound
	case errors.Is(err, service.ErrStorage):
		return response.ErrStorage
	default:
		return response.ErrInternal
	}
}

// parseUUIDParam reads a UUID path parameter, answering 400 when malformed.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
