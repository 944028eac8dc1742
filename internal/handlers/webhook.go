package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voiceclone-backend/internal/config"
	"voiceclone-backend/internal/models"
)

type WebhookStore interface {
	CompleteTTSRequest(requestID uuid.UUID, status, audioURL, errorMsg string) (bool, error)
}

// WebhookHandler receives the TTS worker's completion callback. The row update
// it performs is what fires the change-notification trigger that realtime
// subscribers observe.
type WebhookHandler struct {
	config *config.Config
	store  WebhookStore
}

func NewWebhookHandler(cfg *config.Config, store WebhookStore) *WebhookHandler {
	return &WebhookHandler{
		config: cfg,
		store:  store,
	}
}

// HandleWebhook godoc
// @Summary     TTS worker callback
// @Description Records the worker's terminal outcome for a request. Status transitions are monotonic: a callback for an already-terminal request is acknowledged but ignored.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Authorization header string true "Webhook token"
// @Param       event body models.TTSWebhookEvent true "Completion event"
// @Success     200 {object} map[string]string
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /webhooks/tts [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "missing authorization token"})
		return
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if h.config.WebhookToken != "" && token != h.config.WebhookToken {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization token"})
		return
	}

	var event models.TTSWebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse event",
			Code:    models.CodeBadRequest,
			Message: err.Error(),
		})
		return
	}

	requestID, err := uuid.Parse(event.RequestID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "invalid request_id",
			Code:  models.CodeBadRequest,
		})
		return
	}

	if event.Status != models.StatusCompleted && event.Status != models.StatusFailed {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "status must be completed or failed",
			Code:  models.CodeBadRequest,
		})
		return
	}

	applied, err := h.store.CompleteTTSRequest(requestID, event.Status, event.AudioURL, event.Error)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to record completion",
			Code:    models.CodeInternalServerError,
			Message: err.Error(),
		})
		return
	}

	if !applied {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "request already terminal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
