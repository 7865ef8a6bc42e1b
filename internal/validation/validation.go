// Package validation holds small input checks shared by handlers and
// services.
package validation

import (
	"regexp"
	"strings"
)

// phonePattern accepts E.164-ish mobile numbers with an optional plus:
// 9 to 15 digits.
var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// ValidPhone reports whether s looks like a mobile-money phone number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

// ValidEmail is a light sanity check; real verification happens via the
// confirmation mail flow.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.Index(s, "@")
	return at > 0 && strings.Contains(s[at:], ".") && !strings.ContainsAny(s, " \t")
}

// HasSpecialChar reports whether the password carries at least one
// non-alphanumeric character.
func HasSpecialChar(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return true
		}
	}
	return false
}
