package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/focal-labs/snapledger/internal/common"
	"github.com/focal-labs/snapledger/internal/model"
	"github.com/focal-labs/snapledger/internal/provider"
)

// maxBodySize bounds request bodies; phone photos and voice notes fit
// comfortably under this.
const maxBodySize = 20 << 20

type processReceiptRequest struct {
	Image string `json:"image"`
}

type receiptResponse struct {
	Expense  *model.ExpenseData `json:"expense"`
	Provider provider.Type      `json:"provider"`
	Model    string             `json:"model"`
}

type audioResponse struct {
	Expenses []model.ExpenseData `json:"expenses"`
	Provider provider.Type       `json:"provider"`
	Model    string              `json:"model"`
}

type quotaResponse struct {
	Limit     int   `json:"limit"`
	Used      int   `json:"used"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"resetAt"`
	ResetIn   int64 `json:"resetIn"`
}

func (s *Server) handleProcessReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req processReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON with an image field")
		return
	}

	image, mimeType, err := provider.ParseImageDataURI(req.Image)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	receipt, err := s.pipeline.ProcessReceipt(r.Context(), userID(r), image, mimeType)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, receiptResponse{
		Expense:  receipt.Expense,
		Provider: receipt.Provider,
		Model:    receipt.Model,
	})
}

func (s *Server) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio body")
		return
	}

	mimeType := r.Header.Get("Content-Type")
	localDate := r.Header.Get("X-Local-Date")
	currencyHint := r.Header.Get("X-Currency")

	result, err := s.pipeline.ProcessAudio(r.Context(), userID(r), audio, mimeType, localDate, currencyHint)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, audioResponse{
		Expenses: result.Expenses,
		Provider: result.Provider,
		Model:    result.Model,
	})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	status, err := s.pipeline.Quota(r.Context(), userID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	resp := quotaResponse{
		Limit:     status.Limit,
		Used:      status.Used,
		Remaining: status.Remaining,
		ResetIn:   int64(status.ResetIn.Seconds()),
	}
	if !status.ResetAt.IsZero() {
		resp.ResetAt = status.ResetAt.UnixMilli()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeFailure maps pipeline errors to HTTP statuses. Provider and OCR
// failures are deliberately reported as opaque 502s.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *common.ValidationError
	var quotaErr *common.QuotaExceededError
	var rateErr *provider.RateLimitError
	var provErr *provider.ProviderError
	var ocrErr *provider.OCRError
	var ocrTimeout *provider.OCRTimeoutError

	switch {
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, valErr.Message)
	case errors.As(err, &quotaErr):
		writeError(w, http.StatusTooManyRequests, quotaErr.Error())
	case errors.As(err, &rateErr):
		writeError(w, http.StatusServiceUnavailable, "all providers are rate limited, try again later")
	case errors.As(err, &ocrTimeout):
		writeError(w, http.StatusGatewayTimeout, "text recognition timed out")
	case errors.As(err, &provErr), errors.As(err, &ocrErr):
		s.logger.Error("extraction failed",
			"method", r.Method,
			"path", r.URL.Path,
			"user", userID(r),
			"error", err)
		writeError(w, http.StatusBadGateway, "extraction failed")
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"user", userID(r),
			"error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
