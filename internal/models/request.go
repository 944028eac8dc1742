package models

type StartTTSRequest struct {
	ReferenceID       string `json:"reference_id"`
	ReferenceAudioURL string `json:"reference_audio_url,omitempty"`
	InputText         string `json:"input_text"`
}

type CreateFeedbackRequest struct {
	TTSID         string `json:"tts_id"`
	RatingOverall *int   `json:"rating_overall"`
	Comment       string `json:"comment,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
}

type UpdateFeedbackRequest struct {
	ID            string  `json:"id"`
	TTSID         string  `json:"tts_id,omitempty"`
	RatingOverall *int    `json:"rating_overall,omitempty"`
	Comment       *string `json:"comment,omitempty"`
	SessionID     string  `json:"session_id,omitempty"`
}

type CreateSiteFeedbackRequest struct {
	RatingOverall *int   `json:"rating_overall"`
	Comment       string `json:"comment,omitempty"`
	Page          string `json:"page,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
}

// TTSWebhookEvent is the completion callback posted by the TTS worker.
type TTSWebhookEvent struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"` // "completed" or "failed"
	AudioURL  string `json:"audio_url,omitempty"`
	Error     string `json:"error,omitempty"`
}
