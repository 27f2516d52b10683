package auth

import "strings"

// IdentityDomain is the synthetic email domain for phone-number accounts.
const IdentityDomain = "@hydro.app"

// PhoneToIdentity maps a Philippine phone number onto the provider email
// identity. Non-digits are stripped; a leading 0 becomes 63; a leading 63 is
// kept; anything else gets 63 prepended.
func PhoneToIdentity(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", ErrInvalidPhone
	}
	switch {
	case strings.HasPrefix(digits, "0"):
		digits = "63" + digits[1:]
	case strings.HasPrefix(digits, "63"):
	default:
		digits = "63" + digits
	}
	return digits + IdentityDomain, nil
}

// ValidatePIN accepts 4 to 6 ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return ErrInvalidPIN
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrInvalidPIN
		}
	}
	return nil
}
