package match

import "strings"

// Score computes a normalized word-overlap ratio between two texts, used for
// FAQ matching. Both inputs are case-folded and split on whitespace; the score
// is the size of the shared word set over the size of the smaller set, so a
// question fully contained in a longer FAQ entry still scores 1.0.
func Score(a, b string) float64 {
	wordsA := tokenize(a)
	wordsB := tokenize(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	shared := 0
	for word := range wordsA {
		if _, ok := wordsB[word]; ok {
			shared++
		}
	}

	smaller := len(wordsA)
	if len(wordsB) < smaller {
		smaller = len(wordsB)
	}

	return float64(shared) / float64(smaller)
}

func tokenize(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	words := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		trimmed := strings.Trim(field, ".,!?؟،:;\"'()[]{}")
		if trimmed == "" {
			continue
		}
		words[trimmed] = struct{}{}
	}
	return words
}
