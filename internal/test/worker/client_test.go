package worker_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-backend/internal/worker"
)

func TestClient_Invoke_PassesThroughPayload(t *testing.T) {
	var received worker.InvokeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"queued": true, "queue_position": 2})
	}))
	defer server.Close()

	client := worker.NewClient(server.URL, "test-key")
	payload, err := client.Invoke(worker.InvokeRequest{
		RequestID:   "req-1",
		ReferenceID: "ref-1",
		InputText:   "hello world",
		UserID:      "user-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "req-1", received.RequestID)
	assert.Equal(t, "hello world", received.InputText)
	assert.Equal(t, true, payload["queued"])
	assert.Equal(t, float64(2), payload["queue_position"])
}

func TestClient_Invoke_ErrorCarriesStatusAndMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "model overloaded"})
	}))
	defer server.Close()

	client := worker.NewClient(server.URL, "test-key")
	_, err := client.Invoke(worker.InvokeRequest{RequestID: "req-1"})

	require.Error(t, err)
	var dispatchErr *worker.DispatchError
	require.True(t, errors.As(err, &dispatchErr))
	assert.Equal(t, http.StatusServiceUnavailable, dispatchErr.StatusCode)
	assert.Equal(t, "model overloaded", dispatchErr.Message)
}

func TestClient_Invoke_NonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout"))
	}))
	defer server.Close()

	client := worker.NewClient(server.URL, "test-key")
	_, err := client.Invoke(worker.InvokeRequest{RequestID: "req-1"})

	require.Error(t, err)
	var dispatchErr *worker.DispatchError
	require.True(t, errors.As(err, &dispatchErr))
	assert.Equal(t, "upstream timeout", dispatchErr.Message)
}

func TestClient_Invoke_NoRetries(t *testing.T) {
	// dispatch is at-most-once: a failing worker is called exactly once
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := worker.NewClient(server.URL, "test-key")
	_, err := client.Invoke(worker.InvokeRequest{RequestID: "req-1"})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
