package queue_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-backend/internal/models"
	"voiceclone-backend/internal/queue"
)

type fetcherFunc func(ctx context.Context, requestID string) (*queue.Snapshot, error)

func (f fetcherFunc) FetchStatus(ctx context.Context, requestID string) (*queue.Snapshot, error) {
	return f(ctx, requestID)
}

type fakeSubscriber struct {
	mu           sync.Mutex
	fn           func(queue.Event)
	unsubscribed int
}

func (s *fakeSubscriber) Subscribe(requestID string, fn func(queue.Event)) func() {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.unsubscribed++
		s.mu.Unlock()
	}
}

func (s *fakeSubscriber) push(ev queue.Event) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (s *fakeSubscriber) unsubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

func waitDone(t *testing.T, m *queue.Monitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not finish in time")
	}
}

func fastOptions() queue.Options {
	return queue.Options{
		InitialRedelay: 5 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}
}

func TestMonitor_TerminalPollStopsEverything(t *testing.T) {
	var calls int32
	fetcher := fetcherFunc(func(ctx context.Context, requestID string) (*queue.Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return &queue.Snapshot{RequestID: requestID, Status: models.StatusCompleted, AudioURL: "https://cdn/out.mp3"}, nil
	})
	sub := &fakeSubscriber{}

	m := queue.NewMonitor("req-1", fetcher, sub, fastOptions())
	m.Start(context.Background())
	waitDone(t, m)

	got := atomic.LoadInt32(&calls)
	assert.Equal(t, int32(1), got)

	// no further fetches after the terminal status
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, got, atomic.LoadInt32(&calls))

	snap := m.Snapshot()
	assert.True(t, snap.IsCompleted())
	assert.Equal(t, "https://cdn/out.mp3", snap.AudioURL)
	assert.Equal(t, 1, sub.unsubscribeCount())
}

func TestMonitor_PushTerminalStopsPolling(t *testing.T) {
	var calls int32
	fetcher := fetcherFunc(func(ctx context.Context, requestID string) (*queue.Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return &queue.Snapshot{RequestID: requestID, Status: models.StatusInProgress}, nil
	})
	sub := &fakeSubscriber{}

	m := queue.NewMonitor("req-1", fetcher, sub, fastOptions())
	m.Start(context.Background())

	time.Sleep(20 * time.Millisecond)
	sub.push(queue.Event{RequestID: "req-1", Status: models.StatusCompleted})
	waitDone(t, m)

	got := atomic.LoadInt32(&calls)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, got, atomic.LoadInt32(&calls), "monitor kept polling after terminal status")

	assert.True(t, m.Snapshot().IsCompleted())
	assert.Equal(t, 1, sub.unsubscribeCount())
}

func TestMonitor_StalePollDoesNotOverrideTerminalPush(t *testing.T) {
	// the first poll is slow; a push with the terminal status arrives while
	// it is still in flight, then the stale in_progress result comes back
	release := make(chan struct{})
	var calls int32
	fetcher := fetcherFunc(func(ctx context.Context, requestID string) (*queue.Snapshot, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-release
		}
		return &queue.Snapshot{RequestID: requestID, Status: models.StatusInProgress}, nil
	})
	sub := &fakeSubscriber{}

	m := queue.NewMonitor("req-1", fetcher, sub, fastOptions())
	m.Start(context.Background())

	sub.push(queue.Event{RequestID: "req-1", Status: models.StatusCompleted})
	time.Sleep(50 * time.Millisecond)
	close(release)
	waitDone(t, m)

	snap := m.Snapshot()
	assert.True(t, snap.IsCompleted(), "stale poll result overrode the terminal push")

	got := atomic.LoadInt32(&calls)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, got, atomic.LoadInt32(&calls))
}

func TestMonitor_FetchErrorsDoNotStopPolling(t *testing.T) {
	var calls int32
	fetcher := fetcherFunc(func(ctx context.Context, requestID string) (*queue.Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return nil, assert.AnError
	})
	sub := &fakeSubscriber{}

	m := queue.NewMonitor("req-1", fetcher, sub, fastOptions())
	m.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3), "transient errors should not stop the poll loop")
	assert.Error(t, m.Snapshot().LastErr)

	m.Stop()
	waitDone(t, m)
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, requestID string) (*queue.Snapshot, error) {
		return &queue.Snapshot{RequestID: requestID, Status: models.StatusInProgress}, nil
	})
	sub := &fakeSubscriber{}

	m := queue.NewMonitor("req-1", fetcher, sub, fastOptions())
	m.Start(context.Background())

	m.Stop()
	m.Stop()
	waitDone(t, m)

	require.Equal(t, 1, sub.unsubscribeCount())
	assert.False(t, m.Snapshot().IsTerminal())
}

func TestMonitor_NilSubscriberPollsOnly(t *testing.T) {
	var calls int32
	fetcher := fetcherFunc(func(ctx context.Context, requestID string) (*queue.Snapshot, error) {
		if atomic.AddInt32(&calls, 1) >= 3 {
			return &queue.Snapshot{RequestID: requestID, Status: models.StatusFailed, ErrorMessage: "synthesis crashed"}, nil
		}
		return &queue.Snapshot{RequestID: requestID, Status: models.StatusPending, Position: 2}, nil
	})

	m := queue.NewMonitor("req-1", fetcher, nil, fastOptions())
	m.Start(context.Background())
	waitDone(t, m)

	snap := m.Snapshot()
	assert.Equal(t, models.StatusFailed, snap.Status)
	assert.Equal(t, "synthesis crashed", snap.ErrorMessage)
}

func TestMonitor_OnChangeObservesProgress(t *testing.T) {
	var calls int32
	fetcher := fetcherFunc(func(ctx context.Context, requestID string) (*queue.Snapshot, error) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			return &queue.Snapshot{RequestID: requestID, Status: models.StatusPending, Position: 3, TotalWaiting: 3}, nil
		case 2:
			return &queue.Snapshot{RequestID: requestID, Status: models.StatusInProgress}, nil
		default:
			return &queue.Snapshot{RequestID: requestID, Status: models.StatusCompleted}, nil
		}
	})

	var mu sync.Mutex
	var seen []string
	opts := fastOptions()
	opts.OnChange = func(snap queue.Snapshot) {
		mu.Lock()
		seen = append(seen, snap.Status)
		mu.Unlock()
	}

	m := queue.NewMonitor("req-1", fetcher, nil, opts)
	m.Start(context.Background())
	waitDone(t, m)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{
		models.StatusPending,
		models.StatusInProgress,
		models.StatusCompleted,
	}, seen)
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "Your request is next in line", queue.StatusMessage(models.StatusPending, 1))
	assert.Equal(t, "Waiting in queue: 3 ahead of you", queue.StatusMessage(models.StatusPending, 4))
	assert.Equal(t, "Generating audio...", queue.StatusMessage(models.StatusInProgress, 0))
	assert.Equal(t, "Your audio is ready", queue.StatusMessage(models.StatusCompleted, 0))
	assert.Equal(t, "Generation failed", queue.StatusMessage(models.StatusFailed, 0))
	assert.Equal(t, "Preparing request...", queue.StatusMessage("", 0))
}
