// ABOUTME: Rune-aware title casing shared by builtin and manifest prompts
// ABOUTME: Works on letters, so multi-byte words and hyphenated names stay intact

package textcase

import (
	"strings"
	"unicode"
)

// Title upper-cases the first letter of every run of letters and lower-cases
// the rest, so "objective-c" becomes "Objective-C" and "élan" becomes "Élan".
func Title(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}
