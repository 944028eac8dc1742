package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voiceclone-backend/internal/middleware"
	"voiceclone-backend/internal/models"
	"voiceclone-backend/internal/usage"
	"voiceclone-backend/internal/worker"
)

// TTSStore is the subset of the database client the submission flow needs.
type TTSStore interface {
	CreateTTSRequest(userID uuid.UUID, referenceID, referenceAudioURL, inputText string) (*models.TTSRequest, error)
	UpdateTTSRequestStatus(requestID uuid.UUID, status string) error
	UpdateTTSRequestError(requestID uuid.UUID, errorMsg string) error
}

type QuotaGate interface {
	TryConsume(userID uuid.UUID) (*usage.Decision, error)
}

type WorkerDispatcher interface {
	Invoke(req worker.InvokeRequest) (map[string]interface{}, error)
}

// ReferenceResolver turns an uploaded reference clip id into a fetchable URL.
type ReferenceResolver interface {
	SignedReferenceURL(userID, referenceID string, expiresIn int) (string, error)
}

type TTSHandler struct {
	store   TTSStore
	gate    QuotaGate
	worker  WorkerDispatcher
	storage ReferenceResolver
}

func NewTTSHandler(store TTSStore, gate QuotaGate, workerClient WorkerDispatcher, storage ReferenceResolver) *TTSHandler {
	return &TTSHandler{
		store:   store,
		gate:    gate,
		worker:  workerClient,
		storage: storage,
	}
}

// Start godoc
// @Summary     Start a TTS generation
// @Description Charges the caller's daily quota, creates the request record and dispatches the job to the TTS worker. The quota charge is not refunded if dispatch fails.
// @Tags        tts
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.StartTTSRequest true "Generation input"
// @Success     200 {object} models.StartTTSResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     429 {object} models.QuotaErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /tts/start [post]
func (h *TTSHandler) Start(c *gin.Context) {
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

	var req models.StartTTSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Code:    models.CodeBadRequest,
			Message: err.Error(),
		})
		return
	}

	if req.ReferenceID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "reference_id is required",
			Code:  models.CodeBadRequest,
		})
		return
	}
	if req.InputText == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "input_text is required",
			Code:  models.CodeBadRequest,
		})
		return
	}

	// Quota first. An allow decision has already charged the counter.
	decision, err := h.gate.TryConsume(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to check usage quota",
			Code:    models.CodeUsageCheckFailed,
			Message: err.Error(),
		})
		return
	}
	if decision.Code == models.CodeTermsRequired {
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error: "terms of service must be accepted before generating",
			Code:  models.CodeTermsRequired,
		})
		return
	}
	if !decision.Allowed {
		c.JSON(http.StatusTooManyRequests, models.QuotaErrorResponse{
			Error:     "daily generation limit exceeded",
			Code:      models.CodeDailyLimitExceeded,
			Used:      decision.Used,
			Remaining: decision.Remaining,
			ResetAt:   decision.ResetAt,
		})
		return
	}

	referenceAudioURL := req.ReferenceAudioURL
	if referenceAudioURL == "" && h.storage != nil {
		url, err := h.storage.SignedReferenceURL(userID.String(), req.ReferenceID, 3600)
		if err != nil {
			// The worker can still resolve the clip by reference_id
			log.Printf("failed to sign reference url for %s: %v", req.ReferenceID, err)
		} else {
			referenceAudioURL = url
		}
	}

	record, err := h.store.CreateTTSRequest(userID, req.ReferenceID, referenceAudioURL, req.InputText)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create request",
			Code:    models.CodeInternalServerError,
			Message: err.Error(),
		})
		return
	}

	// At-most-once dispatch. A failure here is billed: the quota charge from
	// above is not refunded.
	payload, err := h.worker.Invoke(worker.InvokeRequest{
		RequestID:         record.ID.String(),
		ReferenceID:       req.ReferenceID,
		ReferenceAudioURL: referenceAudioURL,
		InputText:         req.InputText,
		UserID:            userID.String(),
	})
	if err != nil {
		if updateErr := h.store.UpdateTTSRequestError(record.ID, err.Error()); updateErr != nil {
			log.Printf("failed to record dispatch failure for %s: %v", record.ID, updateErr)
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to dispatch generation job",
			Code:    models.CodeEdgeFunctionError,
			Message: err.Error(),
		})
		return
	}

	if err := h.store.UpdateTTSRequestStatus(record.ID, models.StatusInProgress); err != nil {
		// Job is already dispatched; polling clients converge via the
		// worker's completion callback
		log.Printf("failed to mark request %s in_progress: %v", record.ID, err)
	}

	c.JSON(http.StatusOK, models.StartTTSResponse{
		RequestID: record.ID.String(),
		Status:    models.StatusInProgress,
		Worker:    payload,
	})
}
