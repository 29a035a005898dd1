// Package similarity implements the title-matching rules of spec.md §4.3:
// normalization, a token-set-ratio similarity score, and the threshold
// checks TitleParser/LibrarySubsystem/Processor all share.
package similarity

import (
	"sort"
	"strings"
	"unicode"

	"github.com/adrg/strutil/metrics"
)

// leadingArticles are stripped from the front of a normalized title, per
// §4.3 "remove leading articles".
var leadingArticles = []string{"the ", "a ", "an "}

var levenshtein = &metrics.Levenshtein{
	CaseSensitive: true,
	InsertCost:    1,
	DeleteCost:    1,
	ReplaceCost:   1,
}

// Normalize lowercases s, strips everything but letters/digits/spaces,
// collapses whitespace, and removes a single leading article.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_' || r == ':':
			b.WriteRune(' ')
		}
	}
	normalized := strings.Join(strings.Fields(b.String()), " ")

	for _, article := range leadingArticles {
		if strings.HasPrefix(normalized, article) {
			normalized = strings.TrimPrefix(normalized, article)
			break
		}
	}
	return strings.TrimSpace(normalized)
}

// ratio computes a Levenshtein-distance-based similarity in [0,1] between
// two already-normalized strings.
func ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	dist := levenshtein.Distance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func tokenize(s string) []string {
	return strings.Fields(s)
}

func sortedUnique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// TokenSetRatio scores similarity between two raw (not yet normalized)
// strings using the classic token-set-ratio algorithm: tokenize both,
// build the sorted intersection and the two sorted (intersection+leftover)
// strings, then take the best pairwise ratio among the three combinations.
// This makes word reordering and one-sided extra words (e.g. a studio
// prefix, a trailing year) cost far less than plain edit distance would.
func TokenSetRatio(a, b string) float64 {
	normA, normB := Normalize(a), Normalize(b)
	if normA == normB {
		return 1.0
	}
	if normA == "" || normB == "" {
		return 0
	}

	tokensA := sortedUnique(tokenize(normA))
	tokensB := sortedUnique(tokenize(normB))

	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}

	var intersection, onlyA, onlyB []string
	for _, t := range tokensA {
		if _, ok := setB[t]; ok {
			intersection = append(intersection, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tokensB {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}

	sortedIntersection := strings.Join(intersection, " ")
	combinedA := strings.TrimSpace(sortedIntersection + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sortedIntersection + " " + strings.Join(onlyB, " "))

	best := ratio(sortedIntersection, combinedA)
	if r := ratio(sortedIntersection, combinedB); r > best {
		best = r
	}
	if r := ratio(combinedA, combinedB); r > best {
		best = r
	}
	return best
}

// DefaultThreshold is the title-match floor used for candidates reaching
// the Processor (§3 invariants) and for series pack matching (§4.3).
const DefaultThreshold = 0.85

// Matches reports whether s matches any of candidates at or above
// threshold. Symmetric at the normalized-string level (§8): Matches(a,
// []string{b}, t) == Matches(b, []string{a}, t) because TokenSetRatio(a, b)
// == TokenSetRatio(b, a).
func Matches(s string, candidates []string, threshold float64) bool {
	for _, c := range candidates {
		if TokenSetRatio(s, c) >= threshold {
			return true
		}
	}
	return false
}

// BestMatch returns the highest TokenSetRatio score of s against any
// candidate, or 0 if candidates is empty.
func BestMatch(s string, candidates []string) float64 {
	best := 0.0
	for _, c := range candidates {
		if r := TokenSetRatio(s, c); r > best {
			best = r
		}
	}
	return best
}
