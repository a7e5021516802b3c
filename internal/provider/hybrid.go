package provider

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/focal-labs/snapledger/internal/model"
)

// hybridExtractor is the two-hop pipeline: an external text-recognition
// job, then a text-only language model over the recognized text. OCR
// failures and LLM failures stay distinguishable; only the LLM hop is
// subject to credential fallback.
type hybridExtractor struct {
	ocr        *azureReadClient
	httpClient *http.Client
	logger     *slog.Logger
	model      string
	baseURL    string
	apiKeys    []string
}

func newHybridExtractor(apiKeys []string, modelName string, ocr *azureReadClient, logger *slog.Logger) *hybridExtractor {
	return &hybridExtractor{
		ocr:     ocr,
		apiKeys: apiKeys,
		model:   modelName,
		baseURL: defaultOpenAIBaseURL,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// ProcessReceipt recognizes the receipt text, then asks a text-only model
// for the structured extraction.
func (c *hybridExtractor) ProcessReceipt(ctx context.Context, image []byte, mimeType string) (*model.ExpenseData, error) {
	if err := validateImageMIME(mimeType); err != nil {
		return nil, err
	}

	recognized, err := c.ocr.recognizeText(ctx, image)
	if err != nil {
		return nil, err
	}

	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role":    "system",
				"content": textInstruction(time.Now()),
			},
			{
				"role":    "user",
				"content": "Receipt text:\n\n" + recognized,
			},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "receipt_extraction",
				"strict": true,
				"schema": expenseJSONSchema(),
			},
		},
		"temperature": 0.1,
		"max_tokens":  2000,
	}

	return executeWithFallback(ctx, c.logger, "hybrid", c.apiKeys, func(ctx context.Context, apiKey string) (*model.ExpenseData, error) {
		content, err := completeChat(ctx, c.httpClient, c.baseURL+"/chat/completions", apiKey, "hybrid", requestBody)
		if err != nil {
			return nil, err
		}
		return parseExpense("hybrid", content)
	})
}

// ProcessAudio is not supported; the factory routes audio to a multimodal
// provider.
func (c *hybridExtractor) ProcessAudio(_ context.Context, _ []byte, _, _, _ string) ([]model.ExpenseData, error) {
	return nil, &ProviderError{Provider: "hybrid", Err: ErrAudioUnsupported}
}
