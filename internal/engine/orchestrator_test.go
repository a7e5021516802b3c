package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focal-labs/snapledger/internal/common"
	"github.com/focal-labs/snapledger/internal/model"
	"github.com/focal-labs/snapledger/internal/provider"
	"github.com/focal-labs/snapledger/internal/quota"
)

// stubExtractor counts invocations and returns canned results.
type stubExtractor struct {
	expense    *model.ExpenseData
	expenses   []model.ExpenseData
	err        error
	receipts   int
	recordings int
}

func (s *stubExtractor) ProcessReceipt(_ context.Context, _ []byte, _ string) (*model.ExpenseData, error) {
	s.receipts++
	return s.expense, s.err
}

func (s *stubExtractor) ProcessAudio(_ context.Context, _ []byte, _, _, _ string) ([]model.ExpenseData, error) {
	s.recordings++
	return s.expenses, s.err
}

type stubResolver struct {
	selection *provider.Selection
	err       error
}

func (s *stubResolver) Resolve(string) (*provider.Selection, error) { return s.selection, s.err }
func (s *stubResolver) ResolveAudio() (*provider.Selection, error)  { return s.selection, s.err }

// spyGuard reports a fixed status and counts Record calls.
type spyGuard struct {
	status  *quota.Status
	records int
}

func (g *spyGuard) Status(context.Context, string) (*quota.Status, error) { return g.status, nil }
func (g *spyGuard) Record(context.Context, string) error {
	g.records++
	return nil
}

type stubSettings struct {
	provider string
	currency string
}

func (s *stubSettings) GetProviderPreference(context.Context, string) (string, error) {
	return s.provider, nil
}

func (s *stubSettings) GetDefaultCurrency(context.Context, string) (string, error) {
	return s.currency, nil
}

func openStatus() *quota.Status {
	return &quota.Status{Limit: 10, Used: 0, Remaining: 10}
}

func sampleExpense() *model.ExpenseData {
	return &model.ExpenseData{
		Merchant: "Corner Cafe",
		Date:     "2025-03-14",
		Total:    12.50,
		Category: model.CategoryFoodAndDrink,
		Currency: "JPY",
	}
}

func newTestOrchestrator(extractor *stubExtractor, guard *spyGuard, settings *stubSettings) *Orchestrator {
	resolver := &stubResolver{selection: &provider.Selection{
		Extractor: extractor,
		Provider:  provider.TypeGemini,
		Model:     "gemini-2.5-flash",
	}}
	return NewOrchestrator(resolver, guard, settings, slog.Default())
}

func TestProcessReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("user currency overwrites the model's guess", func(t *testing.T) {
		extractor := &stubExtractor{expense: sampleExpense()}
		guard := &spyGuard{status: openStatus()}
		orch := newTestOrchestrator(extractor, guard, &stubSettings{currency: "EGP"})

		receipt, err := orch.ProcessReceipt(ctx, "user-1", []byte("img"), "image/jpeg")
		require.NoError(t, err)
		assert.Equal(t, "EGP", receipt.Expense.Currency)
		assert.Equal(t, provider.TypeGemini, receipt.Provider)
	})

	t.Run("usd default when user has no currency", func(t *testing.T) {
		extractor := &stubExtractor{expense: sampleExpense()}
		guard := &spyGuard{status: openStatus()}
		orch := newTestOrchestrator(extractor, guard, &stubSettings{})

		receipt, err := orch.ProcessReceipt(ctx, "user-1", []byte("img"), "image/jpeg")
		require.NoError(t, err)
		assert.Equal(t, "USD", receipt.Expense.Currency)
	})

	t.Run("success records usage exactly once", func(t *testing.T) {
		extractor := &stubExtractor{expense: sampleExpense()}
		guard := &spyGuard{status: openStatus()}
		orch := newTestOrchestrator(extractor, guard, &stubSettings{})

		_, err := orch.ProcessReceipt(ctx, "user-1", []byte("img"), "image/jpeg")
		require.NoError(t, err)
		assert.Equal(t, 1, guard.records)
	})

	t.Run("failed extraction records no usage", func(t *testing.T) {
		extractor := &stubExtractor{err: errors.New("model exploded")}
		guard := &spyGuard{status: openStatus()}
		orch := newTestOrchestrator(extractor, guard, &stubSettings{})

		_, err := orch.ProcessReceipt(ctx, "user-1", []byte("img"), "image/jpeg")
		require.Error(t, err)
		assert.Equal(t, 0, guard.records)
	})

	t.Run("exhausted quota never reaches the provider", func(t *testing.T) {
		extractor := &stubExtractor{expense: sampleExpense()}
		guard := &spyGuard{status: &quota.Status{
			Limit:   10,
			Used:    10,
			ResetAt: time.Now().Add(4 * time.Hour),
		}}
		orch := newTestOrchestrator(extractor, guard, &stubSettings{})

		_, err := orch.ProcessReceipt(ctx, "user-1", []byte("img"), "image/jpeg")

		var quotaErr *common.QuotaExceededError
		require.True(t, errors.As(err, &quotaErr))
		assert.Equal(t, 10, quotaErr.Limit)
		assert.Equal(t, 0, extractor.receipts)
		assert.Equal(t, 0, guard.records)
	})

	t.Run("empty image is a validation error", func(t *testing.T) {
		guard := &spyGuard{status: openStatus()}
		orch := newTestOrchestrator(&stubExtractor{}, guard, &stubSettings{})

		_, err := orch.ProcessReceipt(ctx, "user-1", nil, "image/jpeg")

		var valErr *common.ValidationError
		assert.True(t, errors.As(err, &valErr))
	})

	t.Run("resolver failures surface", func(t *testing.T) {
		guard := &spyGuard{status: openStatus()}
		resolver := &stubResolver{err: &common.ConfigError{Name: "gemini_api_key", Err: common.ErrMissingConfig}}
		orch := NewOrchestrator(resolver, guard, &stubSettings{}, slog.Default())

		_, err := orch.ProcessReceipt(ctx, "user-1", []byte("img"), "image/jpeg")
		assert.ErrorIs(t, err, common.ErrMissingConfig)
		assert.Equal(t, 0, guard.records)
	})
}

func TestProcessAudio(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes every extracted expense", func(t *testing.T) {
		extractor := &stubExtractor{expenses: []model.ExpenseData{
			{Merchant: "Taxi", Date: "2025-03-13", Total: 5, Category: model.CategoryTravel, Currency: "USD"},
			{Merchant: "Grocer", Date: "2025-03-13", Total: 30, Category: model.CategoryGroceries, Currency: "JPY"},
		}}
		guard := &spyGuard{status: openStatus()}
		orch := newTestOrchestrator(extractor, guard, &stubSettings{currency: "SAR"})

		result, err := orch.ProcessAudio(ctx, "user-1", []byte("voice"), "audio/webm", "2025-03-13", "")
		require.NoError(t, err)
		require.Len(t, result.Expenses, 2)
		assert.Equal(t, "SAR", result.Expenses[0].Currency)
		assert.Equal(t, "SAR", result.Expenses[1].Currency)
		assert.Equal(t, 1, guard.records)
	})

	t.Run("currency hint fills in for users without a default", func(t *testing.T) {
		extractor := &stubExtractor{expenses: []model.ExpenseData{
			{Merchant: "Taxi", Date: "2025-03-13", Total: 5, Category: model.CategoryTravel},
		}}
		guard := &spyGuard{status: openStatus()}
		orch := newTestOrchestrator(extractor, guard, &stubSettings{})

		result, err := orch.ProcessAudio(ctx, "user-1", []byte("voice"), "audio/webm", "", "EGP")
		require.NoError(t, err)
		assert.Equal(t, "EGP", result.Expenses[0].Currency)
	})

	t.Run("exhausted quota blocks audio too", func(t *testing.T) {
		extractor := &stubExtractor{}
		guard := &spyGuard{status: &quota.Status{Limit: 10, Used: 10}}
		orch := newTestOrchestrator(extractor, guard, &stubSettings{})

		_, err := orch.ProcessAudio(ctx, "user-1", []byte("voice"), "audio/webm", "", "")

		var quotaErr *common.QuotaExceededError
		require.True(t, errors.As(err, &quotaErr))
		assert.Equal(t, 0, extractor.recordings)
	})

	t.Run("empty audio is a validation error", func(t *testing.T) {
		guard := &spyGuard{status: openStatus()}
		orch := newTestOrchestrator(&stubExtractor{}, guard, &stubSettings{})

		_, err := orch.ProcessAudio(ctx, "user-1", nil, "audio/webm", "", "")

		var valErr *common.ValidationError
		assert.True(t, errors.As(err, &valErr))
	})
}
