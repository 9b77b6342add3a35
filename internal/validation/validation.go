package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrStationEmpty is returned when a station name is empty or whitespace-only after trim.
var ErrStationEmpty = errors.New("station name is required")

// ErrStationTooShort is returned when a station name is below the minimum length.
var ErrStationTooShort = errors.New("station name too short")

// ErrStationTooLong is returned when a station name exceeds the maximum length.
var ErrStationTooLong = errors.New("station name too long")

// ErrStationInvalidChars is returned when a station name contains disallowed characters.
var ErrStationInvalidChars = errors.New("station name contains invalid characters")

// ValidateStationName trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to letters (Unicode), digits, space, comma, hyphen, period and apostrophe.
// Returns the trimmed name. Used for configured station lists and the preview ?location= filter.
func ValidateStationName(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrStationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrStationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrStationTooLong
	}
	for _, c := range r {
		if !isAllowedStationRune(c) {
			return "", ErrStationInvalidChars
		}
	}
	return s, nil
}

func isAllowedStationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}
