// Package sanitize maps free text into file-system-safe tokens.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	modelUnsafe = regexp.MustCompile(`[^\p{L}\p{N}_\-. ]`)
	titleUnsafe = regexp.MustCompile(`[^\w\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// ModelName replaces every rune that is not a letter, digit, underscore,
// hyphen, period or space with an underscore. The result is safe to embed in
// a file name and ModelName(ModelName(s)) == ModelName(s).
func ModelName(model string) string {
	return modelUnsafe.ReplaceAllString(model, "_")
}

// Title derives a lowercase ASCII token from a display title: accents are
// decomposed and dropped, punctuation removed, and whitespace runs collapsed
// to a single underscore.
func Title(title string) string {
	decomposed := norm.NFKD.String(title)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	cleaned := titleUnsafe.ReplaceAllString(b.String(), "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = whitespace.ReplaceAllString(cleaned, "_")
	return strings.ToLower(cleaned)
}
