package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetProviderPreference returns the user's preferred provider, or an
// empty string when the user has none saved.
func (s *SQLiteStorage) GetProviderPreference(ctx context.Context, userID string) (string, error) {
	return s.getSetting(ctx, userID, "provider")
}

// GetDefaultCurrency returns the user's default currency, or an empty
// string when the user has none saved.
func (s *SQLiteStorage) GetDefaultCurrency(ctx context.Context, userID string) (string, error) {
	return s.getSetting(ctx, userID, "currency")
}

func (s *SQLiteStorage) getSetting(ctx context.Context, userID, column string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM user_settings WHERE user_id = ?`, column), //nolint:gosec // column is a fixed identifier
		userID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query user settings: %w", err)
	}
	return value, nil
}

// SaveUserSettings upserts the user's provider and currency preferences.
func (s *SQLiteStorage) SaveUserSettings(ctx context.Context, userID, provider, currency string) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, provider, currency, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET
			provider = excluded.provider,
			currency = excluded.currency,
			updated_at = CURRENT_TIMESTAMP`,
		userID, provider, currency)
	if err != nil {
		return fmt.Errorf("failed to save user settings: %w", err)
	}
	return nil
}
