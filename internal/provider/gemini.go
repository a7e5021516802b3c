package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/focal-labs/snapledger/internal/common"
	"github.com/focal-labs/snapledger/internal/model"
)

// geminiExtractor implements the Extractor interface using the Google
// Gemini SDK with schema-typed JSON generation. It is the only adapter
// with native audio support.
type geminiExtractor struct {
	logger  *slog.Logger
	model   string
	apiKeys []string
}

func newGeminiExtractor(apiKeys []string, modelName string, logger *slog.Logger) *geminiExtractor {
	return &geminiExtractor{
		apiKeys: apiKeys,
		model:   modelName,
		logger:  logger,
	}
}

// ProcessReceipt extracts expense data from a receipt image.
func (g *geminiExtractor) ProcessReceipt(ctx context.Context, image []byte, mimeType string) (*model.ExpenseData, error) {
	if err := validateImageMIME(mimeType); err != nil {
		return nil, err
	}

	return executeWithFallback(ctx, g.logger, "gemini", g.apiKeys, func(ctx context.Context, apiKey string) (*model.ExpenseData, error) {
		text, err := g.generate(ctx, apiKey, geminiExpenseSchema(),
			genai.Text(receiptInstruction(time.Now())),
			genai.Blob{MIMEType: mimeType, Data: image},
		)
		if err != nil {
			return nil, err
		}
		return parseExpense("gemini", text)
	})
}

// ProcessAudio extracts every receipt mentioned in a voice note.
func (g *geminiExtractor) ProcessAudio(ctx context.Context, audio []byte, mimeType, localDate, currencyHint string) ([]model.ExpenseData, error) {
	if !strings.HasPrefix(mimeType, "audio/") {
		return nil, common.NewValidationError("unsupported audio type %q", mimeType)
	}

	return executeWithFallback(ctx, g.logger, "gemini-audio", g.apiKeys, func(ctx context.Context, apiKey string) ([]model.ExpenseData, error) {
		text, err := g.generate(ctx, apiKey, geminiReceiptListSchema(),
			genai.Text(audioInstruction(time.Now(), localDate, currencyHint)),
			genai.Blob{MIMEType: mimeType, Data: audio},
		)
		if err != nil {
			return nil, err
		}
		return parseExpenseList("gemini", text)
	})
}

// generate runs one schema-constrained generation with a fresh client for
// the given credential and collects the candidate text.
func (g *geminiExtractor) generate(ctx context.Context, apiKey string, schema *genai.Schema, parts ...genai.Part) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("creating gemini client: %w", err)
	}
	defer func() { _ = client.Close() }()

	generativeModel := client.GenerativeModel(g.model)
	generativeModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := generativeModel.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &ProviderError{Provider: "gemini", Err: fmt.Errorf("no response candidates returned")}
	}

	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	return builder.String(), nil
}
