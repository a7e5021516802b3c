// Package quota enforces the per-user sliding-window usage limit that
// gates extraction requests.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/focal-labs/snapledger/internal/service"
)

// Status is a read-only snapshot of a subject's window. ResetAt is the
// moment the oldest qualifying record ages out; it is zero when nothing
// has been used.
type Status struct {
	ResetAt   time.Time
	ResetIn   time.Duration
	Limit     int
	Used      int
	Remaining int
}

// Guard counts usage records for one action over a trailing window.
// Checks are always recomputed from the store, never cached. IsAllowed
// followed by Record is a check-then-act sequence with no atomicity
// guarantee: concurrent requests from one subject can overshoot the limit
// by up to the number of in-flight requests minus one.
type Guard struct {
	store  service.UsageStore
	now    func() time.Time
	action string
	limit  int
	window time.Duration
}

// NewGuard creates a guard for one action.
func NewGuard(store service.UsageStore, action string, limit int, window time.Duration) *Guard {
	return &Guard{
		store:  store,
		action: action,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// IsAllowed reports whether the subject is under its window allowance.
func (g *Guard) IsAllowed(ctx context.Context, subject string) (bool, error) {
	timestamps, err := g.qualifying(ctx, subject)
	if err != nil {
		return false, err
	}
	return len(timestamps) < g.limit, nil
}

// Record appends exactly one usage record. Callers must invoke it only
// after a successful extraction so failed attempts never consume quota.
func (g *Guard) Record(ctx context.Context, subject string) error {
	if err := g.store.InsertUsageRecord(ctx, g.action, subject, g.now()); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Status reports the subject's current window without mutating state.
func (g *Guard) Status(ctx context.Context, subject string) (*Status, error) {
	timestamps, err := g.qualifying(ctx, subject)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Limit:     g.limit,
		Used:      len(timestamps),
		Remaining: g.limit - len(timestamps),
	}
	if status.Remaining < 0 {
		status.Remaining = 0
	}

	if len(timestamps) > 0 {
		oldest := timestamps[0]
		for _, ts := range timestamps[1:] {
			if ts.Before(oldest) {
				oldest = ts
			}
		}
		status.ResetAt = oldest.Add(g.window)
		if resetIn := status.ResetAt.Sub(g.now()); resetIn > 0 {
			status.ResetIn = resetIn
		}
	}

	return status, nil
}

func (g *Guard) qualifying(ctx context.Context, subject string) ([]time.Time, error) {
	since := g.now().Add(-g.window)
	timestamps, err := g.store.GetUsageTimestamps(ctx, g.action, subject, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	return timestamps, nil
}
