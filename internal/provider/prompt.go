package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/focal-labs/snapledger/internal/model"
)

const dateLayout = "2006-01-02"

// categoryList renders the fixed category set for prompt text.
func categoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// receiptInstruction is the system instruction shared by every receipt
// adapter. Today's date is the fallback for ambiguous or missing dates.
func receiptInstruction(today time.Time) string {
	currentDate := today.Format(dateLayout)
	return fmt.Sprintf(`You are a receipt data extraction assistant. Extract the following information from receipt images:
- merchant: Store/restaurant name
- date: Transaction date in YYYY-MM-DD format
- total: Total amount (number only, no currency symbols or codes)
- category: One of: %s
- lineItems: Array of items with description, quantity, and price

Important:
- Extract the raw numeric total value without any currency symbols
- If date is unclear or not visible, use %s (today's date: %s)
- If lineItems are not visible or unclear, return an empty array
- All fields are required and must match the schema`,
		categoryList(), currentDate, currentDate)
}

// audioInstruction is the system instruction for voice-note extraction.
// localDate anchors relative-date references; currencyHint, when present,
// names the currency to assume for unlabelled amounts.
func audioInstruction(today time.Time, localDate, currencyHint string) string {
	currentDate := localDate
	if currentDate == "" {
		currentDate = today.Format(dateLayout)
	}

	currencyContext := ""
	if currencyHint != "" {
		currencyContext = fmt.Sprintf("\n- The user's default currency is %s. If the currency is not explicitly mentioned in the audio, you can assume amounts are in %s.", currencyHint, currencyHint)
	}

	return fmt.Sprintf(`You are an expert receipt extraction assistant. Your task is to analyze audio recordings where users describe their purchases or read out receipt details.

From the audio, you must extract ALL receipts mentioned and structure each one according to the provided schema.

IMPORTANT DATE CONTEXT:
- Today's date is %[1]s
- When the user mentions relative dates, calculate them based on TODAY being %[1]s:
  * "today" or "اليوم" (al-yawm) = %[1]s
  * "yesterday" or "امبارح" or "أمس" (ams) = subtract 1 day from %[1]s
  * "last Monday", "last week", etc. = calculate backwards from %[1]s
  * "this morning", "earlier today" = use %[1]s
- If the date is unclear or not mentioned at all, use %[1]s

Key guidelines:
- Listen carefully for merchant names, dates, items purchased, quantities, and prices
- If multiple receipts are mentioned in the audio, extract each one separately
- Assign appropriate categories based on merchant type and items mentioned (%[2]s)
- If prices aren't explicitly stated, use your best judgment based on typical market prices
- If quantity isn't mentioned, assume 1
- Be thorough and extract every receipt mentioned in the audio%[3]s

Return a list of all receipts found in the audio.`,
		currentDate, categoryList(), currencyContext)
}

// textInstruction adapts the receipt instruction for recognized OCR text
// instead of an image.
func textInstruction(today time.Time) string {
	instruction := receiptInstruction(today)
	return strings.Replace(instruction, "from receipt images", "from the OCR text of a receipt", 1)
}
