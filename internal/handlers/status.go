package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voiceclone-backend/internal/middleware"
	"voiceclone-backend/internal/models"
	"voiceclone-backend/internal/supabase"
)

type StatusStore interface {
	GetTTSRequest(requestID, userID uuid.UUID) (*models.TTSRequest, error)
	QueueCounts(req *models.TTSRequest) (position, totalWaiting int, err error)
}

type StatusHandler struct {
	store         StatusStore
	secondsPerJob int
}

func NewStatusHandler(store StatusStore, secondsPerJob int) *StatusHandler {
	return &StatusHandler{
		store:         store,
		secondsPerJob: secondsPerJob,
	}
}

// GetStatus godoc
// @Summary     Poll generation status
// @Description Returns the request's lifecycle status plus a queue snapshot (position, total waiting, estimated wait) recomputed on every call.
// @Tags        tts
// @Produce     json
// @Security    Bearer
// @Param       request_id path string true "Request ID (UUID)"
// @Success     200 {object} models.StatusResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /tts/{request_id}/status [get]
func (h *StatusHandler) GetStatus(c *gin.Context) {
	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "user id not found",
			Code:  models.CodeAuthRequired,
		})
		return
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "invalid user id",
			Code:  models.CodeBadRequest,
		})
		return
	}

	requestID, err := uuid.Parse(c.Param("request_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "invalid request id",
			Code:  models.CodeBadRequest,
		})
		return
	}

	record, err := h.store.GetTTSRequest(requestID, userID)
	if err != nil {
		if errors.Is(err, supabase.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: "request not found",
				Code:  models.CodeNotFound,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load request",
			Code:    models.CodeInternalServerError,
			Message: err.Error(),
		})
		return
	}

	position, totalWaiting, err := h.store.QueueCounts(record)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to compute queue position",
			Code:    models.CodeInternalServerError,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{
		RequestID:            record.ID.String(),
		Status:               record.Status,
		QueuePosition:        position,
		TotalWaiting:         totalWaiting,
		EstimatedWaitSeconds: position * h.secondsPerJob,
		AudioURL:             record.AudioURL.String,
		ErrorMessage:         record.ErrorMessage.String,
		UpdatedAt:            record.UpdatedAt,
	})
}
