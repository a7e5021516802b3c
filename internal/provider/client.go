package provider

import (
	"context"

	"github.com/focal-labs/snapledger/internal/model"
)

// Extractor defines the interface every extraction backend implements.
type Extractor interface {
	// ProcessReceipt extracts expense data from a receipt image. The MIME
	// type is the caller's declared type and is validated before any
	// network call.
	ProcessReceipt(ctx context.Context, image []byte, mimeType string) (*model.ExpenseData, error)

	// ProcessAudio extracts one or more receipts from a voice note.
	// localDate (YYYY-MM-DD) anchors relative-date references like
	// "yesterday"; currencyHint names the currency to assume when the
	// speaker doesn't mention one. Both may be empty.
	ProcessAudio(ctx context.Context, audio []byte, mimeType, localDate, currencyHint string) ([]model.ExpenseData, error)
}
