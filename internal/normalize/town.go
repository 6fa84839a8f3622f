package normalize

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Capitalize upper-cases the first letter and lower-cases the rest,
// e.g. "RUSSELL, BLANDFORD" -> "Russell, blandford"
func Capitalize(s string) string {
	s = cases.Lower(language.English).String(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// TownKey returns a case-folded, whitespace-collapsed key for comparing town names
func TownKey(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// TownTitle renders a town name for display, e.g. "NORTH READING" -> "North Reading"
func TownTitle(s string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}

// SplitTowns splits a multi-town tract label such as "Savoy, florida"
func SplitTowns(label string) []string {
	var towns []string
	for _, part := range strings.Split(label, ", ") {
		part = strings.TrimSpace(part)
		if part != "" {
			towns = append(towns, part)
		}
	}
	return towns
}

// ParseFloat parses a participation rate, returning ok=false for blank or
// non-numeric cells
func ParseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
