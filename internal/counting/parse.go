package counting

import (
	"strconv"
	"strings"
)

// parseCount extracts a count from the free-text reply of a vision model.
// Every non-digit is dropped; anything that does not leave a parseable
// integer counts as zero.
func parseCount(reply string) int {
	var digits strings.Builder
	for _, r := range reply {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	if digits.Len() == 0 {
		return 0
	}

	n, err := strconv.Atoi(digits.String())
	if err != nil || n < 0 {
		return 0
	}
	return n
}
