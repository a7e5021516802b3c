package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReceiptInstruction(t *testing.T) {
	today := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	instruction := receiptInstruction(today)

	assert.Contains(t, instruction, "2025-03-14")
	assert.Contains(t, instruction, "Food & Drink")
	assert.Contains(t, instruction, "Other")
}

func TestAudioInstruction(t *testing.T) {
	today := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("local date anchors relative dates", func(t *testing.T) {
		instruction := audioInstruction(today, "2025-03-13", "EGP")
		assert.Contains(t, instruction, "Today's date is 2025-03-13")
		assert.NotContains(t, instruction, "2025-03-14")
		assert.Contains(t, instruction, "default currency is EGP")
	})

	t.Run("server date fallback without hints", func(t *testing.T) {
		instruction := audioInstruction(today, "", "")
		assert.Contains(t, instruction, "Today's date is 2025-03-14")
		assert.NotContains(t, instruction, "default currency")
	})
}

func TestTextInstruction(t *testing.T) {
	today := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	instruction := textInstruction(today)
	assert.Contains(t, instruction, "OCR text")
	assert.NotContains(t, instruction, "from receipt images")
}
