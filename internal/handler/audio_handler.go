package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/falsumairi/ielts-sub001/internal/response"
	"github.com/falsumairi/ielts-sub001/internal/service"
)

// HeaderClientProfile carries the opaque per-device profile identifier
// that scopes audio play tracking.
const HeaderClientProfile = "X-Client-Profile"

// AudioHandler handles play-once audio endpoints. Listening audio hangs
// off either a passage (section recording) or a single question (clip).
type AudioHandler struct {
	audioService *service.AudioService
}

// NewAudioHandler creates a new AudioHandler.
func NewAudioHandler(audioService *service.AudioService) *AudioHandler {
	return &AudioHandler{audioService: audioService}
}

// GetPlayState godoc
// GET /api/v1/tests/:test_id/passages/:passage_id/audio
// Reports whether the passage's recording may still be played.
func (h *AudioHandler) GetPlayState(c *gin.Context) {
	profileID, testID, passageID, ok := h.parseParams(c, "passage_id")
	if !ok {
		return
	}

	state, err := h.audioService.PassagePlayState(c.Request.Context(), profileID, testID, passageID)
	if err != nil {
		h.failFromAudioError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"audio": state})
}

// MarkPlayed godoc
// POST /api/v1/tests/:test_id/passages/:passage_id/audio/played
// Records that playback started. Irreversible for no-replay passages.
func (h *AudioHandler) MarkPlayed(c *gin.Context) {
	profileID, testID, passageID, ok := h.parseParams(c, "passage_id")
	if !ok {
		return
	}

	state, err := h.audioService.MarkPassagePlayed(c.Request.Context(), profileID, testID, passageID)
	if err != nil {
		h.failFromAudioError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"audio": state})
}

// GetQuestionPlayState godoc
// GET /api/v1/tests/:test_id/questions/:question_id/audio
// Reports whether the question's clip may still be played.
func (h *AudioHandler) GetQuestionPlayState(c *gin.Context) {
	profileID, testID, questionID, ok := h.parseParams(c, "question_id")
	if !ok {
		return
	}

	state, err := h.audioService.QuestionPlayState(c.Request.Context(), profileID, testID, questionID)
	if err != nil {
		h.failFromAudioError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"audio": state})
}

// MarkQuestionPlayed godoc
// POST /api/v1/tests/:test_id/questions/:question_id/audio/played
// Records that the question clip's playback started.
func (h *AudioHandler) MarkQuestionPlayed(c *gin.Context) {
	profileID, testID, questionID, ok := h.parseParams(c, "question_id")
	if !ok {
		return
	}

	state, err := h.audioService.MarkQuestionPlayed(c.Request.Context(), profileID, testID, questionID)
	if err != nil {
		h.failFromAudioError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"audio": state})
}

func (h *AudioHandler) parseParams(c *gin.Context, resourceParam string) (string, uuid.UUID, uuid.UUID, bool) {
	profileID := c.GetHeader(HeaderClientProfile)
	if profileID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrProfileIDRequired)
		return "", uuid.Nil, uuid.Nil, false
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", uuid.Nil, uuid.Nil, false
	}

	resourceID, err := uuid.Parse(c.Param(resourceParam))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", uuid.Nil, uuid.Nil, false
	}

	return profileID, testID, resourceID, true
}

func (h *AudioHandler) failFromAudioError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPassageNotFound),
		errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrNoAudio):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
