// Package phone normalizes Kenyan MSISDNs to the canonical 254XXXXXXXXX
// form the gateway and the airtime provider both expect.
package phone

import (
	"strings"

	"github.com/auripay/auripay-backend/internal/apperr"
)

// Normalize accepts common user formats ("0712 345 678", "+254712345678",
// "712345678", "254712345678") and returns country-code-prefixed digits
// with no leading zero and no punctuation.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
			// punctuation stripped
		default:
			return "", &apperr.ValidationError{Field: "phone", Msg: "invalid character in phone number"}
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "254"):
		// already canonical
	case strings.HasPrefix(digits, "0"):
		digits = "254" + digits[1:]
	case strings.HasPrefix(digits, "7") || strings.HasPrefix(digits, "1"):
		digits = "254" + digits
	default:
		return "", &apperr.ValidationError{Field: "phone", Msg: "unrecognized phone format"}
	}

	if len(digits) != 12 {
		return "", &apperr.ValidationError{Field: "phone", Msg: "phone must have 9 digits after country code"}
	}
	if digits[3] != '7' && digits[3] != '1' {
		return "", &apperr.ValidationError{Field: "phone", Msg: "not a subscriber number"}
	}
	return digits, nil
}
