package notification

import (
	"strings"

	"github.com/cosmoos/cosmo_backend/utils"
)

// DialCode is the country calling code local numbers are rewritten to.
var DialCode = "94"

// NormalizePhone strips everything but digits and rewrites local mobile
// numbers to international form: a 9-digit number gets the dial code
// prefixed, a 10-digit "07..." number has its trunk 0 replaced. Anything
// else is returned as digits only.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 9:
		return DialCode + digits
	case len(digits) == 10 && digits[0] == '0' && digits[1] == '7':
		return DialCode + digits[1:]
	default:
		return digits
	}
}

// ValidPhone reports whether a normalized number is dialable.
func ValidPhone(normalized string) bool {
	if normalized == "" {
		return false
	}
	return utils.ValidatePhoneNumber("+"+normalized, utils.CountryCode) == nil
}
