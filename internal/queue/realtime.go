package queue

import (
	"voiceclone-backend/internal/supabase"
)

// realtimeSubscriber adapts supabase.RealtimeClient to the Subscriber
// contract.
type realtimeSubscriber struct {
	client *supabase.RealtimeClient
}

func NewRealtimeSubscriber(client *supabase.RealtimeClient) Subscriber {
	return &realtimeSubscriber{client: client}
}

func (s *realtimeSubscriber) Subscribe(requestID string, fn func(Event)) func() {
	return s.client.Subscribe(requestID, func(ev supabase.RequestEvent) {
		fn(Event{
			RequestID:    ev.RequestID,
			Status:       ev.Status,
			AudioURL:     ev.AudioURL,
			ErrorMessage: ev.ErrorMessage,
		})
	})
}
