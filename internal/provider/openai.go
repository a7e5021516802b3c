package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/focal-labs/snapledger/internal/model"
)

const defaultOpenAIBaseURL = "https://models.github.ai/inference"

// openAIExtractor implements the Extractor interface against the GitHub
// Models inference API, constraining output with a strict JSON schema
// response format.
type openAIExtractor struct {
	httpClient *http.Client
	logger     *slog.Logger
	model      string
	baseURL    string
	apiKeys    []string
}

func newOpenAIExtractor(apiKeys []string, modelName string, logger *slog.Logger) *openAIExtractor {
	return &openAIExtractor{
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

// ProcessReceipt extracts expense data from a receipt image.
func (c *openAIExtractor) ProcessReceipt(ctx context.Context, image []byte, mimeType string) (*model.ExpenseData, error) {
	if err := validateImageMIME(mimeType); err != nil {
		return nil, err
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role":    "system",
				"content": receiptInstruction(time.Now()),
			},
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type":      "image_url",
						"image_url": map[string]any{"url": dataURI},
					},
					{
						"type": "text",
						"text": "Extract the receipt information following the specified schema.",
					},
				},
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

	return executeWithFallback(ctx, c.logger, "openai", c.apiKeys, func(ctx context.Context, apiKey string) (*model.ExpenseData, error) {
		content, err := completeChat(ctx, c.httpClient, c.baseURL+"/chat/completions", apiKey, "openai", requestBody)
		if err != nil {
			return nil, err
		}
		return parseExpense("openai", content)
	})
}

// ProcessAudio is not supported; the factory routes audio to a multimodal
// provider.
func (c *openAIExtractor) ProcessAudio(_ context.Context, _ []byte, _, _, _ string) ([]model.ExpenseData, error) {
	return nil, &ProviderError{Provider: "openai", Err: ErrAudioUnsupported}
}

// chatCompletionResponse is the OpenAI-compatible completion envelope used
// by every HTTP chat adapter.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	} `json:"choices"`
}

// completeChat posts an OpenAI-compatible chat completion request and
// returns the first choice's content. A 429 response becomes a
// RateLimitError so the credential fallback loop can act on it.
func completeChat(ctx context.Context, httpClient *http.Client, url, apiKey, providerName string, requestBody map[string]any) (string, error) {
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &RateLimitError{Err: fmt.Errorf("%s API responded %d: %s", providerName, resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: providerName, Err: fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))}
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &ProviderError{Provider: providerName, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "", &ProviderError{Provider: providerName, Err: fmt.Errorf("no completion choices returned")}
	}

	return response.Choices[0].Message.Content, nil
}
