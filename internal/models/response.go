package models

import "time"

// Machine-usable error codes returned alongside HTTP statuses so clients can
// branch (show terms flow vs. "come back tomorrow" vs. switch to edit mode).
const (
	CodeAuthRequired        = "AUTH_REQUIRED"
	CodeBadRequest          = "BAD_REQUEST"
	CodeTermsRequired       = "TERMS_REQUIRED"
	CodeDailyLimitExceeded  = "DAILY_LIMIT_EXCEEDED"
	CodeUsageCheckFailed    = "USAGE_CHECK_FAILED"
	CodeEdgeFunctionError   = "EDGE_FUNCTION_ERROR"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeInternalServerError = "INTERNAL_SERVER_ERROR"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// QuotaErrorResponse is the 429 body for DAILY_LIMIT_EXCEEDED.
type QuotaErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

type StartTTSResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	// Worker is the dispatch payload returned by the TTS worker, passed
	// through untouched.
	Worker map[string]interface{} `json:"worker,omitempty"`
}

// StatusResponse is the queue snapshot for one request, recomputed per poll.
type StatusResponse struct {
	RequestID            string    `json:"request_id"`
	Status               string    `json:"status"`
	QueuePosition        int       `json:"queue_position"`
	TotalWaiting         int       `json:"total_waiting"`
	EstimatedWaitSeconds int       `json:"estimated_wait_seconds"`
	AudioURL             string    `json:"audio_url,omitempty"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type CreateFeedbackResponse struct {
	ID string `json:"id"`
}

type GetFeedbackResponse struct {
	Exists   bool              `json:"exists"`
	Feedback *FeedbackResponse `json:"feedback,omitempty"`
}

type FeedbackResponse struct {
	ID            string    `json:"id"`
	TTSID         string    `json:"tts_id"`
	RatingOverall int       `json:"rating_overall"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
