package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var displayOverrides = map[string]string{
	"iphone": "iPhone",
	"ipad":   "iPad",
}

// CapitalizeFirst upper-cases the first letter of a catalog value for display
// and leaves the rest untouched. Blank input is returned as given.
func CapitalizeFirst(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	if override, ok := displayOverrides[strings.ToLower(trimmed)]; ok {
		return override
	}
	r, size := utf8.DecodeRuneInString(trimmed)
	return string(unicode.ToUpper(r)) + trimmed[size:]
}

func CapitalizeAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = CapitalizeFirst(v)
	}
	return out
}
