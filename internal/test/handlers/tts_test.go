package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-backend/internal/handlers"
	"voiceclone-backend/internal/middleware"
	"voiceclone-backend/internal/models"
	"voiceclone-backend/internal/usage"
	"voiceclone-backend/internal/worker"
)

type fakeTTSStore struct {
	mu            sync.Mutex
	created       []*models.TTSRequest
	statusUpdates map[uuid.UUID]string
	errorUpdates  map[uuid.UUID]string
}

func newFakeTTSStore() *fakeTTSStore {
	return &fakeTTSStore{
		statusUpdates: make(map[uuid.UUID]string),
		errorUpdates:  make(map[uuid.UUID]string),
	}
}

func (s *fakeTTSStore) CreateTTSRequest(userID uuid.UUID, referenceID, referenceAudioURL, inputText string) (*models.TTSRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := &models.TTSRequest{
		ID:          uuid.New(),
		UserID:      userID,
		ReferenceID: referenceID,
		InputText:   inputText,
		Status:      models.StatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	s.created = append(s.created, req)
	return req, nil
}

func (s *fakeTTSStore) UpdateTTSRequestStatus(requestID uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpdates[requestID] = status
	return nil
}

func (s *fakeTTSStore) UpdateTTSRequestError(requestID uuid.UUID, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorUpdates[requestID] = errorMsg
	return nil
}

type fakeGate struct {
	decision *usage.Decision
	err      error
}

func (g *fakeGate) TryConsume(userID uuid.UUID) (*usage.Decision, error) {
	return g.decision, g.err
}

type fakeWorker struct {
	mu      sync.Mutex
	calls   int
	payload map[string]interface{}
	err     error
}

func (w *fakeWorker) Invoke(req worker.InvokeRequest) (map[string]interface{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.payload, w.err
}

func ttsRouter(store *fakeTTSStore, gate *fakeGate, w *fakeWorker, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewTTSHandler(store, gate, w, nil)
	router := gin.New()
	router.POST("/tts/start", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID.String())
	}, h.Start)
	return router
}

func startTTS(router *gin.Engine, body map[string]interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/tts/start", bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func allowedDecision() *usage.Decision {
	return &usage.Decision{
		Allowed:   true,
		Used:      1,
		Remaining: 14,
		Limit:     15,
		ResetAt:   time.Now().Add(12 * time.Hour),
	}
}

func TestStartTTS_MissingInputText(t *testing.T) {
	store := newFakeTTSStore()
	router := ttsRouter(store, &fakeGate{decision: allowedDecision()}, &fakeWorker{}, uuid.New())

	w := startTTS(router, map[string]interface{}{"reference_id": "ref-1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "input_text")
	assert.Empty(t, store.created)
}

func TestStartTTS_MissingReferenceID(t *testing.T) {
	store := newFakeTTSStore()
	router := ttsRouter(store, &fakeGate{decision: allowedDecision()}, &fakeWorker{}, uuid.New())

	w := startTTS(router, map[string]interface{}{"input_text": "hello"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "reference_id")
}

func TestStartTTS_TermsRequired(t *testing.T) {
	store := newFakeTTSStore()
	gate := &fakeGate{decision: &usage.Decision{Allowed: false, Code: models.CodeTermsRequired}}
	workerClient := &fakeWorker{}
	router := ttsRouter(store, gate, workerClient, uuid.New())

	w := startTTS(router, map[string]interface{}{"reference_id": "ref-1", "input_text": "hello"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "TERMS_REQUIRED")
	assert.Empty(t, store.created)
	assert.Equal(t, 0, workerClient.calls)
}

func TestStartTTS_DailyLimitExceeded(t *testing.T) {
	store := newFakeTTSStore()
	gate := &fakeGate{decision: &usage.Decision{
		Allowed:   false,
		Used:      15,
		Remaining: 0,
		Limit:     15,
		ResetAt:   time.Now().Add(6 * time.Hour),
		Code:      models.CodeDailyLimitExceeded,
	}}
	router := ttsRouter(store, gate, &fakeWorker{}, uuid.New())

	w := startTTS(router, map[string]interface{}{"reference_id": "ref-1", "input_text": "hello"})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp models.QuotaErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.CodeDailyLimitExceeded, resp.Code)
	assert.Equal(t, 15, resp.Used)
	assert.Equal(t, 0, resp.Remaining)
	assert.False(t, resp.ResetAt.IsZero())
	assert.Empty(t, store.created)
}

func TestStartTTS_UsageCheckFailed(t *testing.T) {
	store := newFakeTTSStore()
	gate := &fakeGate{err: assert.AnError}
	router := ttsRouter(store, gate, &fakeWorker{}, uuid.New())

	w := startTTS(router, map[string]interface{}{"reference_id": "ref-1", "input_text": "hello"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "USAGE_CHECK_FAILED")
	assert.Empty(t, store.created)
}

func TestStartTTS_DispatchFailureMarksRequestFailed(t *testing.T) {
	store := newFakeTTSStore()
	workerClient := &fakeWorker{err: &worker.DispatchError{StatusCode: 503, Message: "model overloaded"}}
	router := ttsRouter(store, &fakeGate{decision: allowedDecision()}, workerClient, uuid.New())

	w := startTTS(router, map[string]interface{}{"reference_id": "ref-1", "input_text": "hello"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "EDGE_FUNCTION_ERROR")
	assert.Contains(t, w.Body.String(), "model overloaded")

	require.Len(t, store.created, 1)
	assert.Equal(t, 1, workerClient.calls)
	assert.Contains(t, store.errorUpdates[store.created[0].ID], "model overloaded")
	// no in_progress transition after a failed dispatch
	assert.NotContains(t, store.statusUpdates, store.created[0].ID)
}

func TestStartTTS_Success(t *testing.T) {
	store := newFakeTTSStore()
	workerClient := &fakeWorker{payload: map[string]interface{}{"queued": true}}
	router := ttsRouter(store, &fakeGate{decision: allowedDecision()}, workerClient, uuid.New())

	w := startTTS(router, map[string]interface{}{"reference_id": "ref-1", "input_text": "hello"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.StartTTSResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, store.created, 1)
	assert.Equal(t, store.created[0].ID.String(), resp.RequestID)
	assert.Equal(t, models.StatusInProgress, resp.Status)
	assert.Equal(t, true, resp.Worker["queued"])

	assert.Equal(t, 1, workerClient.calls)
	assert.Equal(t, models.StatusInProgress, store.statusUpdates[store.created[0].ID])
}
