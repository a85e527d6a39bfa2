// Package slug turns display names into URL path segments.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLen is the longest slug Make returns.
const MaxLen = 80

// Make lowercases s, strips accents and joins the remaining ASCII letters and digits with dashes.
// It returns an empty string when nothing usable is left, e.g. for Arabic only input.
func Make(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}

	var b strings.Builder

	dash := false

	for _, r := range strings.ToLower(plain) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}

			b.WriteRune(r)

			dash = false
		default:
			dash = true
		}

		if b.Len() >= MaxLen {
			break
		}
	}

	out := b.String()
	if len(out) > MaxLen {
		out = out[:MaxLen]
	}

	return strings.Trim(out, "-")
}
