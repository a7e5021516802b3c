// Package engine coordinates a single extraction request: quota
// enforcement, provider resolution, extraction, and usage accounting.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/focal-labs/snapledger/internal/common"
	"github.com/focal-labs/snapledger/internal/model"
	"github.com/focal-labs/snapledger/internal/provider"
	"github.com/focal-labs/snapledger/internal/quota"
	"github.com/focal-labs/snapledger/internal/service"
)

// Resolver picks the extractor for a request.
type Resolver interface {
	Resolve(preference string) (*provider.Selection, error)
	ResolveAudio() (*provider.Selection, error)
}

// QuotaGuard gates requests and records successful extractions.
type QuotaGuard interface {
	Status(ctx context.Context, subject string) (*quota.Status, error)
	Record(ctx context.Context, subject string) error
}

// Receipt is the outcome of a single receipt extraction.
type Receipt struct {
	Expense  *model.ExpenseData
	Provider provider.Type
	Model    string
}

// AudioResult is the outcome of a voice extraction, which may describe
// several expenses in one recording.
type AudioResult struct {
	Expenses []model.ExpenseData
	Provider provider.Type
	Model    string
}

// Orchestrator runs the extraction pipeline. Usage is recorded only
// after a successful extraction, so failed attempts never consume quota.
type Orchestrator struct {
	resolver Resolver
	guard    QuotaGuard
	settings service.SettingsStore
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(resolver Resolver, guard QuotaGuard, settings service.SettingsStore, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		guard:    guard,
		settings: settings,
		logger:   logger,
	}
}

// ProcessReceipt extracts one expense from a receipt image. The user's
// default currency always overwrites whatever the model guessed.
func (o *Orchestrator) ProcessReceipt(ctx context.Context, userID string, image []byte, mimeType string) (*Receipt, error) {
	if len(image) == 0 {
		return nil, common.NewValidationError("image data is empty")
	}

	if err := o.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	selection, err := o.resolver.Resolve(o.providerPreference(ctx, userID))
	if err != nil {
		return nil, err
	}

	o.logger.Info("processing receipt",
		"user", userID,
		"provider", selection.Provider,
		"model", selection.Model,
		"bytes", len(image))

	expense, err := selection.Extractor.ProcessReceipt(ctx, image, mimeType)
	if err != nil {
		return nil, fmt.Errorf("receipt extraction failed: %w", err)
	}

	if err := o.guard.Record(ctx, userID); err != nil {
		// The extraction already succeeded; losing one usage row is
		// better than failing the request.
		o.logger.Error("failed to record usage", "user", userID, "error", err)
	}

	expense.Normalize(o.userCurrency(ctx, userID, ""))

	return &Receipt{
		Expense:  expense,
		Provider: selection.Provider,
		Model:    selection.Model,
	}, nil
}

// ProcessAudio extracts expenses from a voice recording. localDate
// anchors relative dates like "yesterday" in the user's timezone, and
// currencyHint suggests a currency when the user has no saved default.
func (o *Orchestrator) ProcessAudio(ctx context.Context, userID string, audio []byte, mimeType, localDate, currencyHint string) (*AudioResult, error) {
	if len(audio) == 0 {
		return nil, common.NewValidationError("audio data is empty")
	}

	if err := o.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	selection, err := o.resolver.ResolveAudio()
	if err != nil {
		return nil, err
	}

	o.logger.Info("processing audio",
		"user", userID,
		"provider", selection.Provider,
		"model", selection.Model,
		"bytes", len(audio))

	currency := o.userCurrency(ctx, userID, currencyHint)

	expenses, err := selection.Extractor.ProcessAudio(ctx, audio, mimeType, localDate, currency)
	if err != nil {
		return nil, fmt.Errorf("audio extraction failed: %w", err)
	}

	if err := o.guard.Record(ctx, userID); err != nil {
		o.logger.Error("failed to record usage", "user", userID, "error", err)
	}

	for i := range expenses {
		expenses[i].Normalize(currency)
	}

	return &AudioResult{
		Expenses: expenses,
		Provider: selection.Provider,
		Model:    selection.Model,
	}, nil
}

// Quota reports the user's current quota window.
func (o *Orchestrator) Quota(ctx context.Context, userID string) (*quota.Status, error) {
	return o.guard.Status(ctx, userID)
}

func (o *Orchestrator) checkQuota(ctx context.Context, userID string) error {
	status, err := o.guard.Status(ctx, userID)
	if err != nil {
		return fmt.Errorf("quota check failed: %w", err)
	}
	if status.Remaining <= 0 {
		return &common.QuotaExceededError{ResetAt: status.ResetAt, Limit: status.Limit}
	}
	return nil
}

func (o *Orchestrator) providerPreference(ctx context.Context, userID string) string {
	preference, err := o.settings.GetProviderPreference(ctx, userID)
	if err != nil {
		o.logger.Warn("failed to read provider preference", "user", userID, "error", err)
		return ""
	}
	return preference
}

func (o *Orchestrator) userCurrency(ctx context.Context, userID, hint string) string {
	currency, err := o.settings.GetDefaultCurrency(ctx, userID)
	if err != nil {
		o.logger.Warn("failed to read default currency", "user", userID, "error", err)
		currency = ""
	}
	if currency == "" {
		currency = hint
	}
	return model.NormalizeCurrency(currency)
}
