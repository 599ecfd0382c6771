// Package sniffer inspects raw upload text before tokenizing: it picks the
// field delimiter, fingerprints header rows for recognizing repeat uploads,
// and probes sample rows for the regional number/date dialect.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Candidates lists the delimiters considered by DetectDelimiter. On a tie
// the earlier entry wins, so comma is the default.
var Candidates = []rune{',', ';', '\t', '|'}

// DetectDelimiter counts each candidate delimiter on the first line of text,
// ignoring occurrences inside double-quoted spans, and returns the most
// frequent one. Ties and lines without any candidate fall back to comma.
func DetectDelimiter(text string) rune {
	line := firstLine(text)

	counts := make(map[rune]int, len(Candidates))
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		for _, c := range Candidates {
			if r == c {
				counts[c]++
			}
		}
	}

	best := ','
	bestCount := 0
	for _, c := range Candidates {
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best
}

// DelimiterName returns a printable name for a delimiter.
func DelimiterName(d rune) string {
	switch d {
	case '\t':
		return "tab"
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '|':
		return "pipe"
	}
	return string(d)
}

// ParseDelimiter is the inverse of DelimiterName. It also accepts the
// delimiter character itself. Unknown values return 0.
func ParseDelimiter(s string) rune {
	switch strings.ToLower(s) {
	case "tab", "\t", `\t`:
		return '\t'
	case "comma", ",":
		return ','
	case "semicolon", ";":
		return ';'
	case "pipe", "|":
		return '|'
	}
	return 0
}

func firstLine(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		return text[:i]
	}
	return text
}

// Fingerprint hashes normalized header names so the same export layout is
// recognized across uploads regardless of case, spacing or punctuation.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}
