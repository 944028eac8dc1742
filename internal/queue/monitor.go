package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voiceclone-backend/internal/models"
)

// Snapshot is the merged, client-visible view of one request's progress.
type Snapshot struct {
	RequestID            string
	Status               string
	Position             int
	TotalWaiting         int
	EstimatedWaitSeconds int
	AudioURL             string
	ErrorMessage         string
	// LastErr is the most recent transient fetch failure. It never stops
	// polling; only a terminal status does.
	LastErr error
}

func (s Snapshot) IsWaiting() bool    { return s.Status == models.StatusPending }
func (s Snapshot) IsProcessing() bool { return s.Status == models.StatusInProgress }
func (s Snapshot) IsCompleted() bool  { return s.Status == models.StatusCompleted }
func (s Snapshot) IsTerminal() bool   { return models.IsTerminalStatus(s.Status) }

// Event is a push notification of a change to the observed request.
type Event struct {
	RequestID    string
	Status       string
	AudioURL     string
	ErrorMessage string
}

// Fetcher polls the authoritative status of a request.
type Fetcher interface {
	FetchStatus(ctx context.Context, requestID string) (*Snapshot, error)
}

// Subscriber delivers push events for one request id. The returned function
// releases the subscription and must be safe to call more than once.
type Subscriber interface {
	Subscribe(requestID string, fn func(Event)) func()
}

type Options struct {
	// InitialRedelay schedules one extra fetch shortly after the first, for
	// fast convergence right after submission.
	InitialRedelay time.Duration
	PollInterval   time.Duration
	// OnChange is invoked after every applied snapshot change.
	OnChange func(Snapshot)
}

// Monitor observes a single request by merging two sources of truth: a poll
// loop against the status endpoint and a standing push subscription. Both feed
// one latch: the first terminal status wins, anything arriving afterwards is
// discarded, and all polling and the subscription stop immediately.
type Monitor struct {
	requestID  string
	fetcher    Fetcher
	subscriber Subscriber
	opts       Options

	mu       sync.Mutex
	snap     Snapshot
	terminal bool

	events      chan Event
	unsubscribe func()
	cancel      context.CancelFunc
	startOnce   sync.Once
	stopOnce    sync.Once
	done        chan struct{}
}

func NewMonitor(requestID string, fetcher Fetcher, subscriber Subscriber, opts Options) *Monitor {
	if opts.InitialRedelay <= 0 {
		opts.InitialRedelay = 2 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Monitor{
		requestID:  requestID,
		fetcher:    fetcher,
		subscriber: subscriber,
		opts:       opts,
		snap:       Snapshot{RequestID: requestID, Status: models.StatusPending},
		events:     make(chan Event, 8),
		done:       make(chan struct{}),
	}
}

// Start begins observing. It is a no-op after the first call.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.cancel = context.WithCancel(ctx)
		if m.subscriber != nil {
			m.unsubscribe = m.subscriber.Subscribe(m.requestID, func(ev Event) {
				// Drop rather than block the notifier; the poll loop
				// converges on its own.
				select {
				case m.events <- ev:
				default:
				}
			})
		}
		go m.run(ctx)
	})
}

// Stop deactivates the monitor: the poll timers and the subscription are
// released. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
	})
}

// Done is closed once the monitor has shut down (terminal status or Stop).
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	}()

	if m.poll(ctx) {
		return
	}

	redelay := time.NewTimer(m.opts.InitialRedelay)
	defer redelay.Stop()
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.events:
			if m.applyEvent(ev) {
				return
			}
		case <-redelay.C:
			if m.poll(ctx) {
				return
			}
		case <-ticker.C:
			if m.poll(ctx) {
				return
			}
		}
	}
}

// poll fetches once and reports whether a terminal status was latched.
func (m *Monitor) poll(ctx context.Context) bool {
	snap, err := m.fetcher.FetchStatus(ctx, m.requestID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		m.mu.Lock()
		m.snap.LastErr = err
		m.mu.Unlock()
		return false
	}
	return m.apply(*snap)
}

func (m *Monitor) applyEvent(ev Event) bool {
	m.mu.Lock()
	snap := m.snap
	m.mu.Unlock()

	snap.Status = ev.Status
	if ev.AudioURL != "" {
		snap.AudioURL = ev.AudioURL
	}
	if ev.ErrorMessage != "" {
		snap.ErrorMessage = ev.ErrorMessage
	}
	if models.IsTerminalStatus(ev.Status) {
		snap.Position = 0
		snap.EstimatedWaitSeconds = 0
	}
	return m.apply(snap)
}

// apply is the latch. Once a terminal status has been recorded, any snapshot
// that arrives afterwards — a stale in-flight poll result included — is
// discarded.
func (m *Monitor) apply(snap Snapshot) bool {
	m.mu.Lock()
	if m.terminal {
		m.mu.Unlock()
		return true
	}
	snap.LastErr = nil
	m.snap = snap
	m.terminal = snap.IsTerminal()
	terminal := m.terminal
	onChange := m.opts.OnChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
	return terminal
}

// StatusMessage maps a status and queue position to a human status line.
func StatusMessage(status string, position int) string {
	switch status {
	case models.StatusPending:
		if position > 1 {
			return fmt.Sprintf("Waiting in queue: %d ahead of you", position-1)
		}
		return "Your request is next in line"
	case models.StatusInProgress:
		return "Generating audio..."
	case models.StatusCompleted:
		return "Your audio is ready"
	case models.StatusFailed:
		return "Generation failed"
	default:
		return "Preparing request..."
	}
}
