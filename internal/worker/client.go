package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client dispatches generation jobs to the external TTS worker (a Supabase
// Edge Function). Dispatch is at-most-once: no retries here, completion comes
// back asynchronously through the webhook.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type InvokeRequest struct {
	RequestID         string `json:"request_id"`
	ReferenceID       string `json:"reference_id"`
	ReferenceAudioURL string `json:"reference_audio_url,omitempty"`
	InputText         string `json:"input_text"`
	UserID            string `json:"user_id"`
}

// DispatchError carries the worker's HTTP status and message so handlers can
// pass them through to the client.
type DispatchError struct {
	StatusCode int
	Message    string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("worker dispatch failed: status %d: %s", e.StatusCode, e.Message)
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Invoke submits one job and returns the worker's response payload untouched.
func (c *Client) Invoke(invokeReq InvokeRequest) (map[string]interface{}, error) {
	jsonData, err := json.Marshal(invokeReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DispatchError{
			StatusCode: resp.StatusCode,
			Message:    workerMessage(body),
		}
	}

	var payload map[string]interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
		}
	}

	return payload, nil
}

// workerMessage pulls a human message out of an error body, falling back to
// the raw text.
func workerMessage(body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return string(body)
}
