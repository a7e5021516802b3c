package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focal-labs/snapledger/internal/common"
	"github.com/focal-labs/snapledger/internal/engine"
	"github.com/focal-labs/snapledger/internal/model"
	"github.com/focal-labs/snapledger/internal/provider"
	"github.com/focal-labs/snapledger/internal/quota"
)

// stubPipeline returns canned results and records what it was called with.
type stubPipeline struct {
	receipt      *engine.Receipt
	audio        *engine.AudioResult
	status       *quota.Status
	err          error
	lastUser     string
	lastMIME     string
	lastDate     string
	lastCurrency string
}

func (p *stubPipeline) ProcessReceipt(_ context.Context, userID string, _ []byte, mimeType string) (*engine.Receipt, error) {
	p.lastUser = userID
	p.lastMIME = mimeType
	return p.receipt, p.err
}

func (p *stubPipeline) ProcessAudio(_ context.Context, userID string, _ []byte, mimeType, localDate, currencyHint string) (*engine.AudioResult, error) {
	p.lastUser = userID
	p.lastMIME = mimeType
	p.lastDate = localDate
	p.lastCurrency = currencyHint
	return p.audio, p.err
}

func (p *stubPipeline) Quota(_ context.Context, userID string) (*quota.Status, error) {
	p.lastUser = userID
	if p.err != nil {
		return nil, p.err
	}
	return p.status, nil
}

func newTestServer(pipeline *stubPipeline) *Server {
	auth := NewTokenAuthenticator(map[string]string{"secret-token": "user-1"})
	return NewServer(pipeline, auth, slog.Default())
}

func jpegDataURI() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("fake-jpeg"))
}

func doReceiptRequest(t *testing.T, server *Server, token, imageField string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"image": imageField})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/receipts/process", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestHandleProcessReceipt(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		pipeline := &stubPipeline{receipt: &engine.Receipt{
			Expense: &model.ExpenseData{
				Merchant: "Corner Cafe",
				Date:     "2025-03-14",
				Total:    12.50,
				Category: model.CategoryFoodAndDrink,
				Currency: "USD",
			},
			Provider: provider.TypeGemini,
			Model:    "gemini-2.5-flash",
		}}
		server := newTestServer(pipeline)

		rec := doReceiptRequest(t, server, "secret-token", jpegDataURI())
		require.Equal(t, http.StatusOK, rec.Code)

		var resp receiptResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Corner Cafe", resp.Expense.Merchant)
		assert.Equal(t, provider.TypeGemini, resp.Provider)
		assert.Equal(t, "user-1", pipeline.lastUser)
		assert.Equal(t, "image/jpeg", pipeline.lastMIME)
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		server := newTestServer(&stubPipeline{})
		rec := doReceiptRequest(t, server, "", jpegDataURI())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token is unauthorized", func(t *testing.T) {
		server := newTestServer(&stubPipeline{})
		rec := doReceiptRequest(t, server, "wrong", jpegDataURI())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed data uri is a 400", func(t *testing.T) {
		server := newTestServer(&stubPipeline{})
		rec := doReceiptRequest(t, server, "secret-token", "data:image/gif;base64,aaaa")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["error"])
	})

	t.Run("non json body is a 400", func(t *testing.T) {
		server := newTestServer(&stubPipeline{})
		req := httptest.NewRequest(http.MethodPost, "/api/receipts/process", bytes.NewReader([]byte("not json")))
		req.Header.Set("Authorization", "Bearer secret-token")
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("quota exhaustion is a 429", func(t *testing.T) {
		pipeline := &stubPipeline{err: &common.QuotaExceededError{
			ResetAt: time.Now().Add(2 * time.Hour),
			Limit:   10,
		}}
		server := newTestServer(pipeline)

		rec := doReceiptRequest(t, server, "secret-token", jpegDataURI())
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("rate limited providers are a 503", func(t *testing.T) {
		pipeline := &stubPipeline{err: &provider.RateLimitError{Err: errors.New("429 from upstream")}}
		server := newTestServer(pipeline)

		rec := doReceiptRequest(t, server, "secret-token", jpegDataURI())
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("provider failure is a 502", func(t *testing.T) {
		pipeline := &stubPipeline{err: &provider.ProviderError{
			Provider: "gemini",
			Err:      errors.New("malformed response"),
		}}
		server := newTestServer(pipeline)

		rec := doReceiptRequest(t, server, "secret-token", jpegDataURI())
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("ocr timeout is a 504", func(t *testing.T) {
		pipeline := &stubPipeline{err: &provider.OCRTimeoutError{Attempts: 10}}
		server := newTestServer(pipeline)

		rec := doReceiptRequest(t, server, "secret-token", jpegDataURI())
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})

	t.Run("unexpected failure is a 500", func(t *testing.T) {
		pipeline := &stubPipeline{err: errors.New("database is on fire")}
		server := newTestServer(pipeline)

		rec := doReceiptRequest(t, server, "secret-token", jpegDataURI())
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleProcessAudio(t *testing.T) {
	t.Run("headers flow through to the pipeline", func(t *testing.T) {
		pipeline := &stubPipeline{audio: &engine.AudioResult{
			Expenses: []model.ExpenseData{
				{Merchant: "Taxi", Date: "2025-03-13", Total: 5, Category: model.CategoryTravel, Currency: "EGP"},
			},
			Provider: provider.TypeGemini,
			Model:    "gemini-2.5-flash",
		}}
		server := newTestServer(pipeline)

		req := httptest.NewRequest(http.MethodPost, "/api/receipts/audio", bytes.NewReader([]byte("voice-bytes")))
		req.Header.Set("Authorization", "Bearer secret-token")
		req.Header.Set("Content-Type", "audio/webm")
		req.Header.Set("X-Local-Date", "2025-03-13")
		req.Header.Set("X-Currency", "EGP")
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "audio/webm", pipeline.lastMIME)
		assert.Equal(t, "2025-03-13", pipeline.lastDate)
		assert.Equal(t, "EGP", pipeline.lastCurrency)

		var resp audioResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Expenses, 1)
		assert.Equal(t, "Taxi", resp.Expenses[0].Merchant)
	})

	t.Run("validation errors are a 400", func(t *testing.T) {
		pipeline := &stubPipeline{err: common.NewValidationError("audio data is empty")}
		server := newTestServer(pipeline)

		req := httptest.NewRequest(http.MethodPost, "/api/receipts/audio", bytes.NewReader(nil))
		req.Header.Set("Authorization", "Bearer secret-token")
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleQuota(t *testing.T) {
	t.Run("reports the window", func(t *testing.T) {
		resetAt := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
		pipeline := &stubPipeline{status: &quota.Status{
			Limit:     10,
			Used:      4,
			Remaining: 6,
			ResetAt:   resetAt,
			ResetIn:   4 * time.Hour,
		}}
		server := newTestServer(pipeline)

		req := httptest.NewRequest(http.MethodGet, "/api/quota", nil)
		req.Header.Set("Authorization", "Bearer secret-token")
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp quotaResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 10, resp.Limit)
		assert.Equal(t, 4, resp.Used)
		assert.Equal(t, 6, resp.Remaining)
		assert.Equal(t, resetAt.UnixMilli(), resp.ResetAt)
		assert.Equal(t, int64(14400), resp.ResetIn)
	})

	t.Run("untouched window has zero reset", func(t *testing.T) {
		pipeline := &stubPipeline{status: &quota.Status{Limit: 10, Remaining: 10}}
		server := newTestServer(pipeline)

		req := httptest.NewRequest(http.MethodGet, "/api/quota", nil)
		req.Header.Set("Authorization", "Bearer secret-token")
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp quotaResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Zero(t, resp.ResetAt)
		assert.Zero(t, resp.ResetIn)
	})
}

func TestHealthz(t *testing.T) {
	server := newTestServer(&stubPipeline{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
