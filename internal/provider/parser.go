package provider

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/focal-labs/snapledger/internal/common"
	"github.com/focal-labs/snapledger/internal/model"
)

// imageDataURIPattern matches the data URIs clients upload. jpg is folded
// into jpeg.
var imageDataURIPattern = regexp.MustCompile(`^data:image/(jpeg|jpg|png|webp);base64,(.+)$`)

// supportedImageMIMEs are the declared types adapters accept.
var supportedImageMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ParseImageDataURI decodes a base64 data URI into raw bytes and a
// normalized MIME type. Malformed input yields a ValidationError.
func ParseImageDataURI(uri string) ([]byte, string, error) {
	match := imageDataURIPattern.FindStringSubmatch(uri)
	if match == nil {
		return nil, "", common.NewValidationError("invalid image format, expected data:image/{jpeg|png|webp};base64,{data}")
	}

	format := match[1]
	if format == "jpg" {
		format = "jpeg"
	}

	data, err := base64.StdEncoding.DecodeString(match[2])
	if err != nil {
		return nil, "", common.NewValidationError("invalid base64 image data: %v", err)
	}

	return data, "image/" + format, nil
}

// validateImageMIME rejects unsupported declared types before any network
// call is made.
func validateImageMIME(mimeType string) error {
	if !supportedImageMIMEs[mimeType] {
		return common.NewValidationError("unsupported image type %q", mimeType)
	}
	return nil
}

// extractJSON recovers a JSON object from raw model output. Markdown code
// fences are stripped, and when the result still starts with prose the
// outermost braces are taken.
func extractJSON(content string) (string, error) {
	text := strings.TrimSpace(content)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}

	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return "", fmt.Errorf("no JSON object found in response")
		}
		text = text[start : end+1]
	}

	return text, nil
}

// parseExpense parses one extraction result from raw model output. All
// parse failures surface as a ProviderError so they terminate credential
// fallback.
func parseExpense(providerName, content string) (*model.ExpenseData, error) {
	text, err := extractJSON(content)
	if err != nil {
		return nil, &ProviderError{Provider: providerName, Err: err}
	}

	var expense model.ExpenseData
	if err := json.Unmarshal([]byte(text), &expense); err != nil {
		return nil, &ProviderError{Provider: providerName, Err: fmt.Errorf("failed to parse JSON response: %w", err)}
	}
	if err := expense.Validate(); err != nil {
		return nil, &ProviderError{Provider: providerName, Err: fmt.Errorf("invalid extraction result: %w", err)}
	}

	return &expense, nil
}

// parseExpenseList parses the audio-path response, a {"receipts": [...]}
// wrapper that may hold any number of receipts.
func parseExpenseList(providerName, content string) ([]model.ExpenseData, error) {
	text, err := extractJSON(content)
	if err != nil {
		return nil, &ProviderError{Provider: providerName, Err: err}
	}

	var wrapper struct {
		Receipts []model.ExpenseData `json:"receipts"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err != nil {
		return nil, &ProviderError{Provider: providerName, Err: fmt.Errorf("failed to parse JSON response: %w", err)}
	}
	for i := range wrapper.Receipts {
		if err := wrapper.Receipts[i].Validate(); err != nil {
			return nil, &ProviderError{Provider: providerName, Err: fmt.Errorf("invalid receipt %d: %w", i, err)}
		}
	}

	if wrapper.Receipts == nil {
		wrapper.Receipts = []model.ExpenseData{}
	}
	return wrapper.Receipts, nil
}
