package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// commonPasswords are rejected outright when RejectVeryWeak is set.
var commonPasswords = map[string]struct{}{
	"admin": {}, "letmein": {}, "password": {}, "password123": {},
	"qwerty": {}, "qwerty123": {}, "123456": {}, "123456789": {},
}

// Validate applies the length bounds (in runes) and, optionally, the weak
// password filter.
func (c Config) Validate(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && trivial(password) {
		return ErrWeakPassword
	}
	return nil
}

// trivial reports blank, single-character, short numeric and well-known
// passwords. It is a denylist, not a strength meter.
func trivial(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}
	if _, ok := commonPasswords[strings.ToLower(s)]; ok {
		return true
	}

	distinct := make(map[rune]struct{}, 2)
	digits := true
	for _, r := range s {
		distinct[r] = struct{}{}
		digits = digits && unicode.IsDigit(r)
	}
	if len(distinct) == 1 {
		return true
	}
	return digits && utf8.RuneCountInString(s) < 12
}
