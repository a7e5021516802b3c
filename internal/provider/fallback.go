package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/focal-labs/snapledger/internal/common"
)

// executeWithFallback attempts op with each credential in order. A
// rate-limit-classified failure moves on to the next credential; any other
// failure stops immediately. The last error is propagated when no
// credential succeeds.
func executeWithFallback[T any](ctx context.Context, logger *slog.Logger, service string, credentials []string, op func(ctx context.Context, credential string) (T, error)) (T, error) {
	var zero T
	if len(credentials) == 0 {
		return zero, fmt.Errorf("%s: %w", service, common.ErrNoCredentials)
	}

	var lastErr error
	for i, credential := range credentials {
		label := credentialLabel(i)

		result, err := op(ctx, credential)
		if err == nil {
			logger.Debug("extraction succeeded",
				"service", service,
				"credential", label,
				"attempts", i+1)
			return result, nil
		}
		lastErr = err

		if !isRateLimited(err) {
			logger.Warn("extraction failed, not retrying",
				"service", service,
				"credential", label,
				"error", err)
			break
		}

		logger.Warn("credential rate limited",
			"service", service,
			"credential", label,
			"remaining", len(credentials)-i-1,
			"error", err)
	}

	return zero, lastErr
}

// credentialLabel names a credential by position for log diagnosis without
// leaking the secret itself.
func credentialLabel(i int) string {
	if i == 0 {
		return "primary"
	}
	return fmt.Sprintf("fallback-%d", i)
}
