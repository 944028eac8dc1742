package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voiceclone-backend/internal/middleware"
	"voiceclone-backend/internal/models"
	"voiceclone-backend/internal/supabase"
)

const maxCommentLength = 140

type FeedbackStore interface {
	CreateFeedback(fb *models.Feedback) error
	GetFeedbackForIdentity(ttsID uuid.UUID, userID uuid.NullUUID, sessionID sql.NullString) (*models.Feedback, error)
	GetFeedbackByID(feedbackID uuid.UUID) (*models.Feedback, error)
	UpdateFeedback(feedbackID uuid.UUID, rating *int, comment *string) error
	CreateSiteFeedback(fb *models.SiteFeedback) error
}

type FeedbackHandler struct {
	store FeedbackStore
}

func NewFeedbackHandler(store FeedbackStore) *FeedbackHandler {
	return &FeedbackHandler{store: store}
}

// resolveIdentity picks the caller's identity exactly once at the boundary:
// the verified user id when authenticated, otherwise the explicit session id.
// Never both; neither is an error.
func resolveIdentity(c *gin.Context, sessionID string) (uuid.NullUUID, sql.NullString, bool) {
	if userIDStr, exists := c.Get(middleware.UserIDKey); exists {
		if userID, err := uuid.Parse(userIDStr.(string)); err == nil {
			return uuid.NullUUID{UUID: userID, Valid: true}, sql.NullString{}, true
		}
	}
	if sessionID != "" {
		return uuid.NullUUID{}, sql.NullString{String: sessionID, Valid: true}, true
	}
	return uuid.NullUUID{}, sql.NullString{}, false
}

func validRating(rating *int) bool {
	return rating != nil && *rating >= 1 && *rating <= 5
}

// Create godoc
// @Summary     Submit feedback for a generation
// @Description Creates one rating+comment per (request, identity). A duplicate submission returns 409 so the client can switch to edit mode.
// @Tags        feedback
// @Accept      json
// @Produce     json
// @Param       request body models.CreateFeedbackRequest true "Feedback"
// @Success     201 {object} models.CreateFeedbackResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /feedback [post]
func (h *FeedbackHandler) Create(c *gin.Context) {
	var req models.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Code:    models.CodeBadRequest,
			Message: err.Error(),
		})
		return
	}

	ttsID, err := uuid.Parse(req.TTSID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "tts_id is required and must be a valid id",
			Code:  models.CodeBadRequest,
		})
		return
	}

	if !validRating(req.RatingOverall) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "ratings must be numbers between 1 and 5",
			Code:  models.CodeBadRequest,
		})
		return
	}

	if utf8.RuneCountInString(req.Comment) > maxCommentLength {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "comment must be 140 characters or fewer",
			Code:  models.CodeBadRequest,
		})
		return
	}

	userID, sessionID, ok := resolveIdentity(c, req.SessionID)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "session id required for anonymous feedback",
			Code:  models.CodeBadRequest,
		})
		return
	}

	// Anonymous identity is not a storage-level foreign key, so duplicates
	// are also detected here before the insert races the partial index.
	if sessionID.Valid {
		if _, err := h.store.GetFeedbackForIdentity(ttsID, userID, sessionID); err == nil {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Error: "feedback already submitted for this generation",
				Code:  models.CodeAlreadyExists,
			})
			return
		}
	}

	fb := &models.Feedback{
		TTSID:         ttsID,
		UserID:        userID,
		SessionID:     sessionID,
		RatingOverall: *req.RatingOverall,
	}
	if req.Comment != "" {
		fb.Comment = sql.NullString{String: req.Comment, Valid: true}
	}

	if err := h.store.CreateFeedback(fb); err != nil {
		if errors.Is(err, supabase.ErrDuplicateFeedback) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Error: "feedback already submitted for this generation",
				Code:  models.CodeAlreadyExists,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to save feedback",
			Code:    models.CodeInternalServerError,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, models.CreateFeedbackResponse{ID: fb.ID.String()})
}

// Get godoc
// @Summary     Look up the caller's feedback for a generation
// @Description Returns only the record matching the caller's own identity; another identity's feedback for the same request is never exposed.
// @Tags        feedback
// @Produce     json
// @Param       tts_id query string true "Request ID"
// @Param       session_id query string false "Anonymous session id"
// @Success     200 {object} models.GetFeedbackResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /feedback [get]
func (h *FeedbackHandler) Get(c *gin.Context) {
	ttsID, err := uuid.Parse(c.Query("tts_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "tts_id is required and must be a valid id",
			Code:  models.CodeBadRequest,
		})
		return
	}

	userID, sessionID, ok := resolveIdentity(c, c.Query("session_id"))
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "session id required for anonymous feedback",
			Code:  models.CodeBadRequest,
		})
		return
	}

	fb, err := h.store.GetFeedbackForIdentity(ttsID, userID, sessionID)
	if err != nil {
		if errors.Is(err, supabase.ErrNotFound) {
			c.JSON(http.StatusOK, models.GetFeedbackResponse{Exists: false})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load feedback",
			Code:    models.CodeInternalServerError,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.GetFeedbackResponse{
		Exists:   true,
		Feedback: feedbackResponse(fb),
	})
}

// Update godoc
// @Summary     Edit previously submitted feedback
// @Description Patches only the provided fields. The caller's identity must match the original submitter.
// @Tags        feedback
// @Accept      json
// @Produce     json
// @Param       request body models.UpdateFeedbackRequest true "Fields to update"
// @Success     200 {object} models.OKResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /feedback [put]
func (h *FeedbackHandler) Update(c *gin.Context) {
	var req models.UpdateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Code:    models.CodeBadRequest,
			Message: err.Error(),
		})
		return
	}

	feedbackID, err := uuid.Parse(req.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "id is required and must be a valid id",
			Code:  models.CodeBadRequest,
		})
		return
	}

	if req.RatingOverall != nil && !validRating(req.RatingOverall) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "ratings must be numbers between 1 and 5",
			Code:  models.CodeBadRequest,
		})
		return
	}
	if req.Comment != nil && utf8.RuneCountInString(*req.Comment) > maxCommentLength {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "comment must be 140 characters or fewer",
			Code:  models.CodeBadRequest,
		})
		return
	}

	userID, sessionID, ok := resolveIdentity(c, req.SessionID)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "session id required for anonymous feedback",
			Code:  models.CodeBadRequest,
		})
		return
	}

	fb, err := h.store.GetFeedbackByID(feedbackID)
	if err != nil {
		if errors.Is(err, supabase.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: "feedback not found",
				Code:  models.CodeNotFound,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load feedback",
			Code:    models.CodeInternalServerError,
			Message: err.Error(),
		})
		return
	}

	// The submitter's identity must match exactly
	owned := (fb.UserID.Valid && userID.Valid && fb.UserID.UUID == userID.UUID) ||
		(fb.SessionID.Valid && sessionID.Valid && fb.SessionID.String == sessionID.String)
	if !owned {
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error: "feedback belongs to a different identity",
			Code:  models.CodeForbidden,
		})
		return
	}

	if req.TTSID != "" && req.TTSID != fb.TTSID.String() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "tts_id does not match the feedback record",
			Code:  models.CodeBadRequest,
		})
		return
	}

	if err := h.store.UpdateFeedback(feedbackID, req.RatingOverall, req.Comment); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to update feedback",
			Code:    models.CodeInternalServerError,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.OKResponse{OK: true})
}

// CreateSite godoc
// @Summary     Submit page-level feedback
// @Description Same validation as generation feedback, but untargeted: no ownership or edit semantics.
// @Tags        feedback
// @Accept      json
// @Produce     json
// @Param       request body models.CreateSiteFeedbackRequest true "Site feedback"
// @Success     201 {object} models.CreateFeedbackResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /site-feedback [post]
func (h *FeedbackHandler) CreateSite(c *gin.Context) {
	var req models.CreateSiteFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Code:    models.CodeBadRequest,
			Message: err.Error(),
		})
		return
	}

	if !validRating(req.RatingOverall) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "ratings must be numbers between 1 and 5",
			Code:  models.CodeBadRequest,
		})
		return
	}
	if utf8.RuneCountInString(req.Comment) > maxCommentLength {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "comment must be 140 characters or fewer",
			Code:  models.CodeBadRequest,
		})
		return
	}

	userID, sessionID, ok := resolveIdentity(c, req.SessionID)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "session id required for anonymous feedback",
			Code:  models.CodeBadRequest,
		})
		return
	}

	fb := &models.SiteFeedback{
		UserID:        userID,
		SessionID:     sessionID,
		RatingOverall: *req.RatingOverall,
	}
	if req.Comment != "" {
		fb.Comment = sql.NullString{String: req.Comment, Valid: true}
	}
	if req.Page != "" {
		fb.Page = sql.NullString{String: req.Page, Valid: true}
	}

	if err := h.store.CreateSiteFeedback(fb); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to save feedback",
			Code:    models.CodeInternalServerError,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, models.CreateFeedbackResponse{ID: fb.ID.String()})
}

func feedbackResponse(fb *models.Feedback) *models.FeedbackResponse {
	return &models.FeedbackResponse{
		ID:            fb.ID.String(),
		TTSID:         fb.TTSID.String(),
		RatingOverall: fb.RatingOverall,
		Comment:       fb.Comment.String,
		CreatedAt:     fb.CreatedAt,
		UpdatedAt:     fb.UpdatedAt,
	}
}
