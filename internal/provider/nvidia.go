package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/focal-labs/snapledger/internal/model"
)

const defaultNvidiaInvokeURL = "https://integrate.api.nvidia.com/v1/chat/completions"

// nvidiaExtractor implements the Extractor interface against NVIDIA NIM,
// constraining output with the nvext guided-decoding extension.
type nvidiaExtractor struct {
	httpClient *http.Client
	logger     *slog.Logger
	model      string
	invokeURL  string
	apiKeys    []string
}

func newNvidiaExtractor(apiKeys []string, modelName string, logger *slog.Logger) *nvidiaExtractor {
	return &nvidiaExtractor{
		apiKeys:   apiKeys,
		model:     modelName,
		invokeURL: defaultNvidiaInvokeURL,
		logger:    logger,
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

// ProcessReceipt extracts expense data from a receipt image.
func (c *nvidiaExtractor) ProcessReceipt(ctx context.Context, image []byte, mimeType string) (*model.ExpenseData, error) {
	if err := validateImageMIME(mimeType); err != nil {
		return nil, err
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type": "text",
						"text": receiptInstruction(time.Now()),
					},
					{
						"type":      "image_url",
						"image_url": map[string]any{"url": dataURI},
					},
				},
			},
		},
		"max_tokens":  2048,
		"temperature": 0.1,
		"top_p":       0.95,
		"stream":      false,
		"extra_body": map[string]any{
			"nvext": map[string]any{
				"guided_json": expenseJSONSchema(),
			},
		},
	}

	return executeWithFallback(ctx, c.logger, "nvidia", c.apiKeys, func(ctx context.Context, apiKey string) (*model.ExpenseData, error) {
		content, err := completeChat(ctx, c.httpClient, c.invokeURL, apiKey, "nvidia", requestBody)
		if err != nil {
			return nil, err
		}
		// Guided decoding should yield clean JSON, but parseExpense still
		// strips fences and prose in case the extension was ignored.
		return parseExpense("nvidia", content)
	})
}

// ProcessAudio is not supported; the factory routes audio to a multimodal
// provider.
func (c *nvidiaExtractor) ProcessAudio(_ context.Context, _ []byte, _, _, _ string) ([]model.ExpenseData, error) {
	return nil, &ProviderError{Provider: "nvidia", Err: ErrAudioUnsupported}
}
