package usage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"voiceclone-backend/internal/models"
)

// CounterStore is the storage contract the gate needs. Implemented by
// supabase.DatabaseClient.
type CounterStore interface {
	TermsAccepted(userID uuid.UUID) (bool, error)
	// IncrementUsage must be atomic: concurrent calls for the same (user, day)
	// serialize on the counter, and a denied call leaves it unchanged.
	IncrementUsage(userID uuid.UUID, day string, limit int) (count int, allowed bool, err error)
}

// Decision is the outcome of one quota check. When Allowed is true the charge
// has already been applied; there is no separate commit step.
type Decision struct {
	Allowed   bool
	Used      int
	Remaining int
	Limit     int
	ResetAt   time.Time
	Code      string
}

// Gate enforces the per-user daily generation quota. The calendar day is
// pinned to one configured timezone so the reset instant is deterministic
// regardless of server or client locale.
type Gate struct {
	store CounterStore
	limit int
	loc   *time.Location
}

func NewGate(store CounterStore, limit int, timezone string) (*Gate, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid usage timezone %q: %w", timezone, err)
	}
	return &Gate{store: store, limit: limit, loc: loc}, nil
}

// TryConsume charges one generation against the caller's daily quota. Callers
// who have not accepted the terms are denied with Code TERMS_REQUIRED before
// the counter is touched. A storage error is returned as an error, never as
// an allow.
func (g *Gate) TryConsume(userID uuid.UUID) (*Decision, error) {
	accepted, err := g.store.TermsAccepted(userID)
	if err != nil {
		return nil, fmt.Errorf("usage check failed: %w", err)
	}

	now := time.Now().In(g.loc)
	resetAt := NextMidnight(now, g.loc)

	if !accepted {
		return &Decision{
			Allowed: false,
			Limit:   g.limit,
			ResetAt: resetAt,
			Code:    models.CodeTermsRequired,
		}, nil
	}

	count, allowed, err := g.store.IncrementUsage(userID, DayString(now, g.loc), g.limit)
	if err != nil {
		return nil, fmt.Errorf("usage check failed: %w", err)
	}

	decision := &Decision{
		Allowed:   allowed,
		Used:      count,
		Remaining: g.limit - count,
		Limit:     g.limit,
		ResetAt:   resetAt,
	}
	if !allowed {
		decision.Remaining = 0
		decision.Code = models.CodeDailyLimitExceeded
	}

	return decision, nil
}

func (g *Gate) Limit() int {
	return g.limit
}

// DayString formats t's calendar day in loc, the identity half of the
// (user, day) counter key.
func DayString(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// NextMidnight returns the next day boundary in loc, i.e. when the counter
// conceptually resets.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}
