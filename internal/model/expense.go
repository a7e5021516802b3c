// Package model defines the core data types shared across the application.
package model

import (
	"fmt"
	"math"
	"time"
)

// Category is a fixed expense category.
type Category string

// The category set providers are instructed to choose from. Anything else
// is coerced to CategoryOther.
const (
	CategoryFoodAndDrink Category = "Food & Drink"
	CategoryGroceries    Category = "Groceries"
	CategoryTravel       Category = "Travel"
	CategoryShopping     Category = "Shopping"
	CategoryUtilities    Category = "Utilities"
	CategoryOther        Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryFoodAndDrink,
	CategoryGroceries,
	CategoryTravel,
	CategoryShopping,
	CategoryUtilities,
	CategoryOther,
}

// NormalizeCategory returns the category unchanged if it is in the fixed
// set, and CategoryOther otherwise.
func NormalizeCategory(c string) Category {
	for _, valid := range Categories {
		if Category(c) == valid {
			return valid
		}
	}
	return CategoryOther
}

// Currencies providers and users may select. Extraction results are always
// overwritten with the user's configured default, so this list only guards
// stored settings.
var Currencies = []string{"USD", "EUR", "GBP", "JPY", "CAD", "EGP", "SAR"}

// NormalizeCurrency returns the code unchanged if it is a supported
// ISO 4217 code, and "USD" otherwise.
func NormalizeCurrency(code string) string {
	for _, valid := range Currencies {
		if code == valid {
			return valid
		}
	}
	return "USD"
}

// LineItem is a single purchased item on a receipt.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
}

// ExpenseData is the normalized result of a receipt or voice-note
// extraction. Date is always YYYY-MM-DD; Currency is set by the
// orchestrator from the user's settings, never trusted from a provider.
type ExpenseData struct {
	Merchant  string     `json:"merchant"`
	Date      string     `json:"date"`
	Total     float64    `json:"total"`
	Category  Category   `json:"category"`
	Currency  string     `json:"currency,omitempty"`
	LineItems []LineItem `json:"lineItems"`
}

// Validate checks the structural invariants of an extraction result.
func (e *ExpenseData) Validate() error {
	if e.Merchant == "" {
		return fmt.Errorf("merchant is required")
	}
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return fmt.Errorf("date %q is not YYYY-MM-DD: %w", e.Date, err)
	}
	if !isFiniteNonNegative(e.Total) {
		return fmt.Errorf("total %v must be a finite non-negative number", e.Total)
	}
	for i, item := range e.LineItems {
		if item.Quantity <= 0 || math.IsInf(item.Quantity, 0) || math.IsNaN(item.Quantity) {
			return fmt.Errorf("line item %d: quantity %v must be a positive number", i, item.Quantity)
		}
		if !isFiniteNonNegative(item.Price) {
			return fmt.Errorf("line item %d: price %v must be a finite non-negative number", i, item.Price)
		}
	}
	return nil
}

// Normalize enforces the invariants a caller can rely on: the category is
// in-set, the line item list is never nil, and the currency is the given
// default regardless of what the provider guessed.
func (e *ExpenseData) Normalize(defaultCurrency string) {
	e.Category = NormalizeCategory(string(e.Category))
	e.Currency = NormalizeCurrency(defaultCurrency)
	if e.LineItems == nil {
		e.LineItems = []LineItem{}
	}
}

func isFiniteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
