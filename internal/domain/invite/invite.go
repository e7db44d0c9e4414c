// Package invite normalizes public invite codes.
//
// Codes are uppercased; six and eight character codes gain a hyphen at
// their midpoint (ABC-DEF, ABCD-EFGH). Normalization is total and
// idempotent.
package invite

import (
	"strings"
	"unicode/utf8"
)

// Normalize returns the canonical form of code.
func Normalize(code string) string {
	upper := strings.ToUpper(code)

	n := utf8.RuneCountInString(upper)
	if n != 6 && n != 8 {
		return upper
	}

	runes := []rune(upper)
	half := n / 2
	return string(runes[:half]) + "-" + string(runes[half:])
}

// NormalizeAll normalizes every code in place and returns the slice.
func NormalizeAll(codes []string) []string {
	for i, code := range codes {
		codes[i] = Normalize(code)
	}
	return codes
}

// SplitMulti splits a ';' separated list. An empty value yields nil.
func SplitMulti(val string) []string {
	if val == "" {
		return nil
	}
	return strings.Split(val, ";")
}
