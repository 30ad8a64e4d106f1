package common

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var titleCollapseSpace = regexp.MustCompile(`\s+`)

// NormalizeTitle strips diacritics and collapses whitespace so title
// lookups against external metadata providers match across accent and
// spacing variants (e.g. "Amélie" vs "Amelie"). Punctuation is kept as is.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(title) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(titleCollapseSpace.ReplaceAllString(b.String(), " "))
}
