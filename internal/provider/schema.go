package provider

import (
	"github.com/google/generative-ai-go/genai"

	"github.com/focal-labs/snapledger/internal/model"
)

// categoryEnum lists the category names for schema constraints.
func categoryEnum() []string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return names
}

// expenseJSONSchema is the draft JSON schema shared by the OpenAI-style and
// guided-decoding adapters.
func expenseJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"merchant": map[string]any{
				"type":        "string",
				"description": "Store or restaurant name",
			},
			"date": map[string]any{
				"type":        "string",
				"description": "Transaction date in YYYY-MM-DD format",
				"pattern":     `^\d{4}-\d{2}-\d{2}$`,
			},
			"total": map[string]any{
				"type":        "number",
				"description": "Total amount (number only, no currency symbols)",
			},
			"category": map[string]any{
				"type":        "string",
				"description": "Expense category",
				"enum":        categoryEnum(),
			},
			"lineItems": map[string]any{
				"type":        "array",
				"description": "Individual items from the receipt",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"description": map[string]any{"type": "string"},
						"quantity":    map[string]any{"type": "number"},
						"price":       map[string]any{"type": "number"},
					},
					"required":             []string{"description", "quantity", "price"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"merchant", "date", "total", "category", "lineItems"},
		"additionalProperties": false,
	}
}

// geminiExpenseSchema is the schema-typed generation config for Gemini.
func geminiExpenseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"merchant": {
				Type:        genai.TypeString,
				Description: "Store or restaurant name",
			},
			"date": {
				Type:        genai.TypeString,
				Description: "Transaction date in YYYY-MM-DD format",
			},
			"total": {
				Type:        genai.TypeNumber,
				Description: "Total amount (number only, no currency symbols)",
			},
			"category": {
				Type:        genai.TypeString,
				Description: "Expense category",
				Enum:        categoryEnum(),
			},
			"lineItems": {
				Type:        genai.TypeArray,
				Description: "Individual items from the receipt",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"description": {Type: genai.TypeString},
						"quantity":    {Type: genai.TypeNumber},
						"price":       {Type: genai.TypeNumber},
					},
					Required: []string{"description", "quantity", "price"},
				},
			},
		},
		Required: []string{"merchant", "date", "total", "category", "lineItems"},
	}
}

// geminiReceiptListSchema wraps the expense schema in a receipts array for
// the audio path, which may yield several receipts per recording.
func geminiReceiptListSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"receipts": {
				Type:  genai.TypeArray,
				Items: geminiExpenseSchema(),
			},
		},
		Required: []string{"receipts"},
	}
}
