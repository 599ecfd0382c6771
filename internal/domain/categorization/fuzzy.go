package categorization

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// DefaultResolveThreshold is the lowest score (0-100) accepted by Resolve.
const DefaultResolveThreshold = 70

// Resolution is a budget category chosen for a free-text category name.
type Resolution struct {
	Category Category
	Score    int // 100 is an exact, case-insensitive match
}

// Resolver maps category names coming from files or keyword rules onto the
// categories that exist in a budget. It tolerates spelling and formatting
// drift such as "Eating out" vs "Eating Out & Takeaway".
type Resolver struct {
	categories []Category
	names      []string // uppercased names, same order as categories
	threshold  int
}

// NewResolver creates a resolver over the given categories.
func NewResolver(categories []Category, threshold int) *Resolver {
	if threshold <= 0 {
		threshold = DefaultResolveThreshold
	}
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = strings.ToUpper(strings.TrimSpace(c.Name))
	}
	return &Resolver{categories: categories, names: names, threshold: threshold}
}

// Resolve returns the best category for name, or nil when nothing scores at
// least the threshold. When group is not empty, a category in that group
// wins a tie.
func (r *Resolver) Resolve(name, group string) *Resolution {
	target := strings.ToUpper(strings.TrimSpace(name))
	if target == "" || len(r.categories) == 0 {
		return nil
	}

	var best *Resolution
	for i, candidate := range r.names {
		score := fuzzyScore(target, candidate)
		if score < r.threshold {
			continue
		}
		if best == nil || score > best.Score ||
			(score == best.Score && group != "" && strings.EqualFold(r.categories[i].GroupName, group)) {
			best = &Resolution{Category: r.categories[i], Score: score}
		}
	}

	return best
}

// Len returns the number of categories known to the resolver.
func (r *Resolver) Len() int {
	return len(r.categories)
}

// fuzzyScore rates the similarity of two uppercased strings from 0 to 100,
// taking the best of containment, edit distance and subsequence rank.
func fuzzyScore(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}

	if strings.Contains(s1, s2) {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) {
		return 75 + (25 * len(s1) / len(s2))
	}

	maxLen := max(len(s1), len(s2))
	if maxLen == 0 {
		return 0
	}

	distance := levenshteinDistance(s1, s2)
	levenshteinScore := 100 * (maxLen - distance) / maxLen

	fuzzyLibScore := 0
	if rank := fuzzy.RankMatchFold(s2, s1); rank >= 0 && rank < len(s1) {
		fuzzyLibScore = 60 - (rank * 40 / len(s1))
	}

	return max(levenshteinScore, fuzzyLibScore)
}

// levenshteinDistance is the rune edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}
