package geoid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Length is the number of characters in a census tract GeoID (SSCCCTTTTTS)
const Length = 11

var (
	// ErrInvalidGeoID is returned when an identifier is not an 11-digit decimal string
	ErrInvalidGeoID = errors.New("invalid census tract geoid")

	// ErrUnknownGeoID is returned when an identifier is absent from a lookup it is required to be in
	ErrUnknownGeoID = errors.New("unknown geoid")
)

// Validate checks that s is an 11-character decimal string
func Validate(s string) error {
	if len(s) != Length {
		return fmt.Errorf("%w: %q has %d characters, want %d", ErrInvalidGeoID, s, len(s), Length)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("%w: %q contains non-digit %q", ErrInvalidGeoID, s, s[i])
		}
	}
	return nil
}

// County returns the 5-character state+county code
func County(id string) string {
	return id[:5]
}

// Base returns the 9-character prefix used for sequential grouping
func Base(id string) string {
	return id[:len(id)-2]
}

// Suffix returns the trailing two digits as an integer.
// The id must already have passed Validate.
func Suffix(id string) int {
	n, _ := strconv.Atoi(id[len(id)-2:])
	return n
}

// LastTwo returns the trailing two characters
func LastTwo(id string) string {
	return id[len(id)-2:]
}

// Normalize converts a raw property or CSV value to a GeoID string.
// JSON numbers decode as float64 and CSV exports of numeric columns often
// carry a trailing ".0"; both are folded back to the digit string.
func Normalize(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(val)
		return strings.TrimSuffix(s, ".0")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Parse normalizes and validates a raw value in one step
func Parse(v interface{}) (string, error) {
	id := Normalize(v)
	if err := Validate(id); err != nil {
		return "", err
	}
	return id, nil
}
