package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertUsageRecord appends one row to the usage log. Rows are never
// updated or deleted.
func (s *SQLiteStorage) InsertUsageRecord(ctx context.Context, action, identifier string, at time.Time) error {
	if action == "" {
		return fmt.Errorf("action cannot be empty")
	}
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (id, action, identifier, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), action, identifier, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// GetUsageTimestamps returns the creation times of all records for an
// action and identifier at or after since, oldest first.
func (s *SQLiteStorage) GetUsageTimestamps(ctx context.Context, action, identifier string, since time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at FROM usage_records
		 WHERE action = ? AND identifier = ? AND created_at >= ?
		 ORDER BY created_at ASC`,
		action, identifier, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var timestamps []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		timestamps = append(timestamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage records: %w", err)
	}
	return timestamps, nil
}
