// Package service defines the interfaces for the application's external
// collaborators.
package service

import (
	"context"
	"time"
)

// UsageStore is the append-only usage log behind the quota guard. Records
// are inserted and queried, never updated or deleted.
type UsageStore interface {
	InsertUsageRecord(ctx context.Context, action, identifier string, at time.Time) error
	GetUsageTimestamps(ctx context.Context, action, identifier string, since time.Time) ([]time.Time, error)
}

// SettingsStore exposes the per-user settings the orchestrator consults:
// which provider the user prefers and which currency their expenses are
// normalized to.
type SettingsStore interface {
	GetProviderPreference(ctx context.Context, userID string) (string, error)
	GetDefaultCurrency(ctx context.Context, userID string) (string, error)
}
