package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voiceclone-backend/internal/models"
)

// HTTPFetcher polls the backend's status endpoint for one request.
type HTTPFetcher struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPFetcher(baseURL, token string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (f *HTTPFetcher) FetchStatus(ctx context.Context, requestID string) (*Snapshot, error) {
	url := f.baseURL + "/api/v1/tts/" + requestID + "/status"
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to fetch status: status %d, body: %s", resp.StatusCode, string(body))
	}

	var status models.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &Snapshot{
		RequestID:            status.RequestID,
		Status:               status.Status,
		Position:             status.QueuePosition,
		TotalWaiting:         status.TotalWaiting,
		EstimatedWaitSeconds: status.EstimatedWaitSeconds,
		AudioURL:             status.AudioURL,
		ErrorMessage:         status.ErrorMessage,
	}, nil
}
