package queue

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	parentheticalRegex = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	articleRegex       = regexp.MustCompile(`(?i)^(the|a|an)\s+`)
	punctuationRegex   = regexp.MustCompile(`[^\w\s]+`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
)

// removeAccents strips combining diacritical marks, the same approach
// common.NormalizeTitle uses.
func removeAccents(s string) string {
	var result strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}

// titleVariants returns the set of query strings derived from a source
// title, widening provider search coverage: the original, with
// parentheticals stripped, with a leading article stripped, the prefix
// before a colon, and with punctuation stripped. Order matters since
// callers try variants in sequence and stop at the first hit.
func titleVariants(title string) []string {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	seen := make(map[string]bool)
	var variants []string
	add := func(v string) {
		v = strings.TrimSpace(whitespaceRegex.ReplaceAllString(v, " "))
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		variants = append(variants, v)
	}

	add(title)

	stripped := parentheticalRegex.ReplaceAllString(title, " ")
	add(stripped)

	add(articleRegex.ReplaceAllString(title, ""))
	add(articleRegex.ReplaceAllString(stripped, ""))

	if idx := strings.Index(title, ":"); idx > 0 {
		add(title[:idx])
	}

	add(punctuationRegex.ReplaceAllString(title, " "))

	return variants
}

// titleSimilarity is a normalized similarity score in [0,1] between two
// titles, used by the refresh_metadata fuzzy-match step. It compares
// accent-stripped, lowercased, whitespace-collapsed forms using a
// token-overlap heuristic (Sorensen-Dice over word sets), which is cheap
// and stable for title matching without needing an edit-distance library.
func titleSimilarity(a, b string) float64 {
	na := normalizeForMatch(a)
	nb := normalizeForMatch(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}

	wa := strings.Fields(na)
	wb := strings.Fields(nb)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(wa))
	for _, w := range wa {
		setA[w] = true
	}
	overlap := 0
	for _, w := range wb {
		if setA[w] {
			overlap++
		}
	}

	return 2 * float64(overlap) / float64(len(wa)+len(wb))
}

func normalizeForMatch(s string) string {
	s = strings.ToLower(removeAccents(s))
	s = punctuationRegex.ReplaceAllString(s, " ")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// bestMatchIndex picks the candidate title most similar to want, applying
// a +0.15 bonus when the candidate's year matches. Returns -1 if no
// candidate clears the 0.5 similarity floor.
func bestMatchIndex(want string, wantYear int, candidateTitles []string, candidateYears []int) int {
	best := -1
	bestScore := 0.5 // floor, inclusive: a score of exactly 0.5 matches (>= below)
	for i, candidate := range candidateTitles {
		score := titleSimilarity(want, candidate)
		if wantYear != 0 && i < len(candidateYears) && candidateYears[i] == wantYear {
			score += 0.15
		}
		if score >= bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}
