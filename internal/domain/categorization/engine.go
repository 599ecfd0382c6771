package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Rule maps a keyword found in a vendor or description to a category name.
// Keywords are matched case-insensitively as substrings of the text padded
// with a space on each side, so " UBER " only matches the whole word.
type Rule struct {
	Keyword   string
	CleanName string
	Category  string
	Priority  int
}

// MatchResult is the rule that won for a piece of text.
type MatchResult struct {
	Keyword   string
	CleanName string
	Category  string
	Priority  int
}

// Engine matches every keyword in one pass over the text using Aho-Corasick,
// so lookup cost does not grow with the number of rules.
type Engine struct {
	matcher  *ahocorasick.Matcher
	patterns []string
	metadata [][]MatchResult // several rules may share a keyword
	mu       sync.RWMutex
}

// NewEngine builds an engine from rules.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{}
	e.Build(rules)
	return e
}

// Build replaces the loaded rules.
func (e *Engine) Build(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	patternToIndex := make(map[string]int, len(rules))
	patterns := make([]string, 0, len(rules))
	metadata := make([][]MatchResult, 0, len(rules))

	for _, rule := range rules {
		keyword := strings.ToUpper(rule.Keyword)
		if strings.TrimSpace(keyword) == "" {
			continue
		}

		result := MatchResult{
			Keyword:   strings.TrimSpace(rule.Keyword),
			CleanName: rule.CleanName,
			Category:  rule.Category,
			Priority:  rule.Priority,
		}

		if idx, ok := patternToIndex[keyword]; ok {
			metadata[idx] = append(metadata[idx], result)
			continue
		}
		patternToIndex[keyword] = len(patterns)
		patterns = append(patterns, keyword)
		metadata = append(metadata, []MatchResult{result})
	}

	e.patterns = patterns
	e.metadata = metadata
	e.matcher = nil

	if len(patterns) > 0 {
		bytePatterns := make([][]byte, len(patterns))
		for i, p := range patterns {
			bytePatterns[i] = []byte(p)
		}
		e.matcher = ahocorasick.NewMatcher(bytePatterns)
	}
}

// Match returns the best rule found in text, or nil. Higher priority wins,
// then the longer keyword, so "UBER EATS" beats " UBER ".
func (e *Engine) Match(text string) *MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.match(text)
}

// MatchBatch matches many texts under a single read lock.
func (e *Engine) MatchBatch(texts []string) []*MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]*MatchResult, len(texts))
	for i, text := range texts {
		results[i] = e.match(text)
	}
	return results
}

func (e *Engine) match(text string) *MatchResult {
	if e.matcher == nil {
		return nil
	}

	hits := e.matcher.Match([]byte(" " + strings.ToUpper(text) + " "))
	if len(hits) == 0 {
		return nil
	}

	var best *MatchResult
	for _, idx := range hits {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		for i := range e.metadata[idx] {
			m := &e.metadata[idx][i]
			if best == nil || m.Priority > best.Priority ||
				(m.Priority == best.Priority && len(m.Keyword) > len(best.Keyword)) {
				c := *m
				best = &c
			}
		}
	}

	return best
}

// PatternCount returns the number of distinct keywords loaded.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

// IsEmpty reports whether no keywords are loaded.
func (e *Engine) IsEmpty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matcher == nil
}

// DefaultRules returns keyword rules for common UK and Portuguese merchants.
func DefaultRules() []Rule {
	return []Rule{
		// Groceries
		{Keyword: "TESCO", CleanName: "Tesco", Category: "Groceries"},
		{Keyword: "SAINSBURY", CleanName: "Sainsbury's", Category: "Groceries"},
		{Keyword: "WAITROSE", CleanName: "Waitrose", Category: "Groceries"},
		{Keyword: "ASDA", CleanName: "Asda", Category: "Groceries"},
		{Keyword: "MORRISONS", CleanName: "Morrisons", Category: "Groceries"},
		{Keyword: "LIDL", CleanName: "Lidl", Category: "Groceries"},
		{Keyword: "ALDI", CleanName: "Aldi", Category: "Groceries"},
		{Keyword: "PINGO DOCE", CleanName: "Pingo Doce", Category: "Groceries"},
		{Keyword: "CONTINENTE", CleanName: "Continente", Category: "Groceries"},
		{Keyword: "MERCADONA", CleanName: "Mercadona", Category: "Groceries"},

		// Eating out
		{Keyword: "STARBUCKS", CleanName: "Starbucks", Category: "Eating Out"},
		{Keyword: "COSTA COFFEE", CleanName: "Costa Coffee", Category: "Eating Out"},
		{Keyword: "PRET A MANGER", CleanName: "Pret A Manger", Category: "Eating Out"},
		{Keyword: "MCDONALD", CleanName: "McDonald's", Category: "Eating Out"},
		{Keyword: "BURGER KING", CleanName: "Burger King", Category: "Eating Out"},
		{Keyword: " KFC ", CleanName: "KFC", Category: "Eating Out"},
		{Keyword: "DELIVEROO", CleanName: "Deliveroo", Category: "Eating Out"},
		{Keyword: "UBER EATS", CleanName: "Uber Eats", Category: "Eating Out"},
		{Keyword: "GLOVO", CleanName: "Glovo", Category: "Eating Out"},
		{Keyword: "BOLT FOOD", CleanName: "Bolt Food", Category: "Eating Out"},

		// Transport
		{Keyword: " UBER ", CleanName: "Uber", Category: "Transport"},
		{Keyword: " BOLT ", CleanName: "Bolt", Category: "Transport"},
		{Keyword: "TRAINLINE", CleanName: "Trainline", Category: "Transport"},
		{Keyword: " TFL ", CleanName: "TfL", Category: "Transport"},
		{Keyword: "RYANAIR", CleanName: "Ryanair", Category: "Transport"},
		{Keyword: "EASYJET", CleanName: "easyJet", Category: "Transport"},
		{Keyword: "SHELL", CleanName: "Shell", Category: "Transport"},
		{Keyword: " GALP ", CleanName: "Galp", Category: "Transport"},

		// Bills
		{Keyword: "VODAFONE", CleanName: "Vodafone", Category: "Bills"},
		{Keyword: "THAMES WATER", CleanName: "Thames Water", Category: "Bills"},
		{Keyword: "BRITISH GAS", CleanName: "British Gas", Category: "Bills"},
		{Keyword: "OCTOPUS ENERGY", CleanName: "Octopus Energy", Category: "Bills"},
		{Keyword: "COUNCIL TAX", CleanName: "Council Tax", Category: "Bills"},
		{Keyword: " EDP ", CleanName: "EDP", Category: "Bills"},
		{Keyword: " MEO ", CleanName: "MEO", Category: "Bills"},

		// Shopping
		{Keyword: "AMAZON", CleanName: "Amazon", Category: "Shopping"},
		{Keyword: " IKEA ", CleanName: "IKEA", Category: "Shopping"},
		{Keyword: "PRIMARK", CleanName: "Primark", Category: "Shopping"},
		{Keyword: " ZARA ", CleanName: "Zara", Category: "Shopping"},
		{Keyword: "ARGOS", CleanName: "Argos", Category: "Shopping"},

		// Entertainment and subscriptions
		{Keyword: "NETFLIX", CleanName: "Netflix", Category: "Entertainment"},
		{Keyword: "SPOTIFY", CleanName: "Spotify", Category: "Entertainment"},
		{Keyword: "DISNEY PLUS", CleanName: "Disney+", Category: "Entertainment"},
		{Keyword: "APPLE.COM", CleanName: "Apple", Category: "Entertainment"},
		{Keyword: "PLAYSTATION", CleanName: "PlayStation", Category: "Entertainment"},
		{Keyword: " STEAM ", CleanName: "Steam", Category: "Entertainment"},

		// Health
		{Keyword: " BOOTS ", CleanName: "Boots", Category: "Health"},
		{Keyword: "FARMACIA", CleanName: "Farmácia", Category: "Health"},
		{Keyword: "PUREGYM", CleanName: "PureGym", Category: "Health"},
	}
}
