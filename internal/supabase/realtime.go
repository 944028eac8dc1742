package supabase

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"
)

const requestChangesChannel = "tts_request_changes"

// RequestEvent is one change notification for a tts_request row, emitted by
// the notify_tts_request_change trigger.
type RequestEvent struct {
	RequestID    string `json:"request_id"`
	Status       string `json:"status"`
	AudioURL     string `json:"audio_url"`
	ErrorMessage string `json:"error_message"`
}

// RealtimeClient fans out Postgres NOTIFY events on the tts_request_changes
// channel to per-request subscribers.
type RealtimeClient struct {
	listener *pq.Listener

	mu     sync.Mutex
	subs   map[string]map[int]func(RequestEvent)
	nextID int
	closed bool
	done   chan struct{}
}

func NewRealtimeClient(connectionString string) (*RealtimeClient, error) {
	listener := pq.NewListener(connectionString, 10*time.Second, time.Minute,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				log.Printf("realtime listener event %d: %v", event, err)
			}
		})

	if err := listener.Listen(requestChangesChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", requestChangesChannel, err)
	}

	r := &RealtimeClient{
		listener: listener,
		subs:     make(map[string]map[int]func(RequestEvent)),
		done:     make(chan struct{}),
	}
	go r.dispatch()

	return r, nil
}

// Subscribe registers a callback for changes to one request. The returned
// function removes the subscription and is safe to call more than once.
func (r *RealtimeClient) Subscribe(requestID string, fn func(RequestEvent)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	if r.subs[requestID] == nil {
		r.subs[requestID] = make(map[int]func(RequestEvent))
	}
	r.subs[requestID][id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if m, ok := r.subs[requestID]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(r.subs, requestID)
			}
		}
	}
}

func (r *RealtimeClient) dispatch() {
	for {
		select {
		case n := <-r.listener.Notify:
			if n == nil {
				// reconnect; listener re-establishes LISTEN itself
				continue
			}
			var event RequestEvent
			if err := json.Unmarshal([]byte(n.Extra), &event); err != nil {
				log.Printf("realtime: failed to parse notification: %v", err)
				continue
			}
			r.mu.Lock()
			callbacks := make([]func(RequestEvent), 0, len(r.subs[event.RequestID]))
			for _, fn := range r.subs[event.RequestID] {
				callbacks = append(callbacks, fn)
			}
			r.mu.Unlock()
			for _, fn := range callbacks {
				fn(event)
			}
		case <-r.done:
			return
		}
	}
}

func (r *RealtimeClient) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	return r.listener.Close()
}
