package record

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// cashScale is the number of decimal places kept for cash amounts
	cashScale = 2

	// maxCashText bounds the input before it reaches the decimal parser
	maxCashText = 32

	maxCashExponent = 12
)

// maxCash is the first amount treated as out of range
var maxCash = decimal.New(1, maxCashExponent)

// ParseCashAmount reads a cash amount from a JSON number or string.
// Missing, malformed or negative input becomes zero rather than an error.
func ParseCashAmount(raw json.RawMessage) decimal.Decimal {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.Zero
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = s
	}
	return ParseCashString(text)
}

// ParseCashString parses a form value the same way as ParseCashAmount.
// Amounts are rounded to cents; anything at or above maxCash becomes zero.
func ParseCashString(text string) decimal.Decimal {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxCashText {
		return decimal.Zero
	}

	amount, err := decimal.NewFromString(text)
	if err != nil || amount.IsNegative() {
		return decimal.Zero
	}

	// Exponent checks come first so huge or tiny scientific notation is never expanded
	exp := amount.Exponent()
	if exp > maxCashExponent || exp < -maxCashText {
		return decimal.Zero
	}
	if amount.GreaterThanOrEqual(maxCash) {
		return decimal.Zero
	}
	return amount.Round(cashScale)
}
