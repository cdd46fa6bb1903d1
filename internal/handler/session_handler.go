package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/falsumairi/ielts-sub001/internal/engine"
	"github.com/falsumairi/ielts-sub001/internal/middleware"
	"github.com/falsumairi/ielts-sub001/internal/model"
	"github.com/falsumairi/ielts-sub001/internal/response"
	"github.com/falsumairi/ielts-sub001/internal/service"
	"github.com/falsumairi/ielts-sub001/internal/validator"
)

// SessionHandler handles timed attempt lifecycle endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// StartAttempt godoc
// POST /api/v1/tests/:test_id/attempts
// Starts a test for the caller, resuming their open attempt when one exists.
func (h *SessionHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.sessionService.Start(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		var loadErr *engine.LoadError
		var initErr *engine.SessionInitError
		switch {
		case errors.As(err, &loadErr):
			response.Fail(c, http.StatusBadGateway, response.ErrLoadFailed)
		case errors.As(err, &initErr):
			response.Fail(c, http.StatusConflict, response.ErrSessionInit)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// ListAttempts godoc
// GET /api/v1/attempts
// Lists the caller's attempts, newest first.
func (h *SessionHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.sessionService.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// PauseAttempt godoc
// POST /api/v1/attempts/:attempt_id/pause
func (h *SessionHandler) PauseAttempt(c *gin.Context) {
	h.transition(c, h.sessionService.Pause)
}

// ResumeAttempt godoc
// POST /api/v1/attempts/:attempt_id/resume
func (h *SessionHandler) ResumeAttempt(c *gin.Context) {
	h.transition(c, h.sessionService.Resume)
}

// CompleteAttempt godoc
// POST /api/v1/attempts/:attempt_id/complete
// Flushes pending answers and finishes the attempt.
func (h *SessionHandler) CompleteAttempt(c *gin.Context) {
	h.transition(c, h.sessionService.Complete)
}

// AbandonAttempt godoc
// POST /api/v1/attempts/:attempt_id/abandon
// Records an abandonment observed by the client (tab close beacon).
func (h *SessionHandler) AbandonAttempt(c *gin.Context) {
	h.transition(c, h.sessionService.Abandon)
}

// SubmitAnswer godoc
// PUT /api/v1/attempts/:attempt_id/answers/:question_id
// Upserts one answer; the REST fallback for clients without the stream.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.SubmitAnswer(c.Request.Context(), attemptID, claims.UserID, questionID, req.Value); err != nil {
		h.failFromServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// GetState godoc
// GET /api/v1/attempts/:attempt_id/state
// Returns answers so far plus the countdown, for page reloads.
func (h *SessionHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessionService.GetState(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		h.failFromServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// GetProgress godoc
// GET /api/v1/attempts/:attempt_id/progress
// Returns the answered/total breakdown, overall and per passage.
func (h *SessionHandler) GetProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	progress, err := h.sessionService.Progress(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		h.failFromServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"progress": progress})
}

// transition factors out the four status-change endpoints, which differ
// only in the service call.
func (h *SessionHandler) transition(c *gin.Context, fn func(ctx context.Context, attemptID uuid.UUID, userID int) error) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := fn(c.Request.Context(), attemptID, claims.UserID); err != nil {
		h.failFromServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

func (h *SessionHandler) failFromServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrNoOpenAttempt):
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveAttempt)
	case errors.Is(err, service.ErrAttemptFinished):
		response.Fail(c, http.StatusConflict, response.ErrAttemptFinished)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
