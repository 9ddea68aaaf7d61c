// Package slug derives stable identifiers from user supplied names.
package slug

import (
	"strings"
	"unicode"
)

// Make lowercases the name and collapses every non-alphanumeric run into a
// single underscore, so "BB Lower + Red/Green" becomes "bb_lower_red_green".
func Make(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	var b strings.Builder
	lastUnderscore := true
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
