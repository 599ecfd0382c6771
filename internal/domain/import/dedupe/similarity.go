package dedupe

import (
	"strings"
	"unicode/utf8"
)

// Similarity scores two normalized vendor strings in [0, 1]. Identical
// strings score 1. When one contains the other the score is the length
// ratio. Otherwise it is the Jaccard index of their character bigram sets.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	shorter, longer := a, b
	if la > lb {
		shorter, longer = b, a
		la, lb = lb, la
	}
	if strings.Contains(longer, shorter) {
		return float64(la) / float64(lb)
	}

	return bigramJaccard(a, b)
}

func bigrams(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{}, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

func bigramJaccard(a, b string) float64 {
	ba, bb := bigrams(a), bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	shared := 0
	for g := range ba {
		if _, ok := bb[g]; ok {
			shared++
		}
	}
	union := len(ba) + len(bb) - shared
	return float64(shared) / float64(union)
}
