package query

import (
	"strings"
	"unicode"
)

// Tokens lowercases s, strips punctuation, and splits into word tokens.
func Tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
}

// Overlap computes the token-overlap ratio between the expected text and
// the compared text: shared token count divided by the larger of the two
// token-set sizes. Returns 0 when either side has no tokens.
func Overlap(expected, got string) float64 {
	expSet := tokenSet(Tokens(expected))
	gotSet := tokenSet(Tokens(got))
	if len(expSet) == 0 || len(gotSet) == 0 {
		return 0
	}

	shared := 0
	for tok := range expSet {
		if gotSet[tok] {
			shared++
		}
	}

	denom := len(expSet)
	if len(gotSet) > denom {
		denom = len(gotSet)
	}
	return float64(shared) / float64(denom)
}

// MatchedTokens returns the expected-text tokens that also appear in the
// compared text, in first-seen order.
func MatchedTokens(expected, got string) []string {
	gotSet := tokenSet(Tokens(got))
	seen := make(map[string]bool)
	var matched []string
	for _, tok := range Tokens(expected) {
		if gotSet[tok] && !seen[tok] {
			seen[tok] = true
			matched = append(matched, tok)
		}
	}
	return matched
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
